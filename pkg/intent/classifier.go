// Package intent implements the deterministic routing policy: an
// ordered-rule classifier over normalized input text and known entities.
// Rules are evaluated top to bottom, first match wins, and rules that need
// an entity (an order id) only fire when that entity is already present, so
// an id-less message never classifies as an order query.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/ordercopilot/lattice/pkg/ports"
)

// Intent labels. Escalation routes to the agent activity; everything in the
// render-eligible set resolves straight to the render activity.
const (
	OrderStatus    = "order_status"
	OrderPrice     = "order_price"
	TrackOrder     = "track_order"
	Refund         = "refund"
	FastenerSearch = "fastener_search"
	PolicyQuestion = "policy_question"
	ChitChat       = "chit_chat"
)

// Escalation is the label the router escalates to the agent activity.
const Escalation = FastenerSearch

// RenderEligible reports whether the label resolves directly to render.
func RenderEligible(label string) bool {
	switch label {
	case OrderStatus, OrderPrice, TrackOrder, PolicyQuestion, ChitChat:
		return true
	}
	return false
}

// EntityOrderID is the entity key rules gate on.
const EntityOrderID = "orderId"

// EntityEmail is extracted alongside order ids during intake.
const EntityEmail = "email"

type rule struct {
	label         string
	pattern       *regexp.Regexp
	requireEntity string
}

var rules = []rule{
	{OrderPrice, regexp.MustCompile(`\b(price|cost|amount|total|how much|what.*price|what.*cost)\b`), EntityOrderID},
	{TrackOrder, regexp.MustCompile(`\b(track|tracking|where is|location|shipment)\b`), EntityOrderID},
	{OrderStatus, regexp.MustCompile(`\b(status|check|what.*status|how.*order|carrier|shipper|shipping company)\b`), EntityOrderID},
	{Refund, regexp.MustCompile(`\b(refund|return|cancel.*order)\b`), EntityOrderID},
	{FastenerSearch, regexp.MustCompile(`\b(fastener|screw|bolt|nut|hardware|part)\b`), ""},
	{PolicyQuestion, regexp.MustCompile(`\b(policy|warranty|return.*policy|shipping.*policy)\b`), ""},
}

var (
	orderIDPattern = regexp.MustCompile(`\b(\d{5})\b`)
	emailPattern   = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)
)

// ExtractEntities pulls structured entities out of raw input text.
func ExtractEntities(text string) map[string]string {
	entities := make(map[string]string)
	if m := orderIDPattern.FindStringSubmatch(text); m != nil {
		entities[EntityOrderID] = m[1]
	}
	if m := emailPattern.FindString(text); m != "" {
		entities[EntityEmail] = m
	}
	return entities
}

// Classify runs the ordered-rule pass. It is pure and side-effect free;
// unmatched input falls back to ChitChat.
func Classify(text string, entities map[string]string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.requireEntity != "" && entities[r.requireEntity] == "" {
			continue
		}
		if r.pattern.MatchString(lower) {
			return r.label
		}
	}
	return ChitChat
}

// Policy bundles the rule pass with an optional model-based fallback. The
// fallback is consulted only when the rules yield the default label and a
// classifier collaborator is configured.
type Policy struct {
	Fallback ports.Classifier
}

// Classify applies the rules, escalating to the fallback when configured.
// Fallback errors are swallowed: the rule verdict stands.
func (p Policy) Classify(ctx context.Context, text string, entities map[string]string) string {
	label := Classify(text, entities)
	if label != ChitChat || p.Fallback == nil {
		return label
	}
	refined, err := p.Fallback.Classify(ctx, text, entities)
	if err != nil || refined == "" {
		return label
	}
	return refined
}
