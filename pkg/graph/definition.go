package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// LoadDefinition reads a GraphDefinition from a JSON or YAML file, chosen
// by extension.
func LoadDefinition(path string) (domain.GraphDefinition, error) {
	var def domain.GraphDefinition
	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read graph definition: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return def, fmt.Errorf("parse graph definition %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &def); err != nil {
			return def, fmt.Errorf("parse graph definition %s: %w", path, err)
		}
	default:
		return def, fmt.Errorf("graph definition %s: unsupported extension", path)
	}
	return def, nil
}

// DefaultDefinition is the built-in order copilot workflow. The review node
// carries the single back edge to classify, which is what makes refund
// follow-ups possible and what the cycle guard verifies.
func DefaultDefinition() domain.GraphDefinition {
	return domain.GraphDefinition{
		StartID: "start",
		Activities: []domain.Activity{
			{ID: "start", Name: "Start", Kind: domain.KindStart},
			{ID: "intake", Name: "Intake", Kind: domain.KindIntake},
			{ID: "retrieval", Name: "Document Retrieval", Kind: domain.KindRetrieval},
			{ID: "classify", Name: "Intent Classification", Kind: domain.KindClassify},
			{ID: "tool", Name: "Order Tools", Kind: domain.KindTool},
			{ID: "router", Name: "Router", Kind: domain.KindRouter},
			{ID: "render", Name: "Render Response", Kind: domain.KindRender},
			{ID: "agent", Name: "Product Agent", Kind: domain.KindAgent},
			{ID: "review", Name: "Human Review", Kind: domain.KindHumanReview},
		},
		Connections: []domain.Connection{
			{SourceID: "start", TargetID: "intake"},
			{SourceID: "intake", TargetID: "retrieval"},
			{SourceID: "retrieval", TargetID: "classify"},
			{SourceID: "classify", TargetID: "tool"},
			{SourceID: "tool", TargetID: "router"},
			{SourceID: "router", TargetID: "render"},
			{SourceID: "router", TargetID: "agent"},
			{SourceID: "router", TargetID: "review"},
			{SourceID: "review", TargetID: "classify"},
		},
	}
}
