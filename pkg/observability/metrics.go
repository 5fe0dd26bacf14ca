// Package observability exposes engine lifecycle events as Prometheus
// metrics. Metrics attach to the executor through domain.LifecycleHooks,
// so the engine itself stays free of metric dependencies.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// Metrics holds the engine metric set.
type Metrics struct {
	activityVisits *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	turns          *prometheus.CounterVec
	turnSteps      prometheus.Histogram
}

// NewMetrics creates and registers the metric set on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activityVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_activity_visits_total",
				Help: "Total number of activity executions",
			},
			[]string{"activity_id", "kind"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_tool_calls_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool", "is_error"},
		),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_turns_total",
				Help: "Total number of turns by outcome",
			},
			[]string{"outcome"},
		),
		turnSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lattice_turn_steps",
				Help:    "Activity executions per turn",
				Buckets: []float64{1, 3, 5, 8, 13, 21, 34},
			},
		),
	}
	reg.MustRegister(m.activityVisits, m.toolCalls, m.turns, m.turnSteps)
	return m
}

// Hooks returns the lifecycle hooks that feed this metric set.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActivityEnter: func(_ context.Context, e *domain.ActivityEvent) {
			m.activityVisits.WithLabelValues(e.ActivityID, string(e.Kind)).Inc()
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			label := "false"
			if e.IsError {
				label = "true"
			}
			m.toolCalls.WithLabelValues(e.Tool, label).Inc()
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			m.turns.WithLabelValues(e.Outcome).Inc()
			m.turnSteps.Observe(float64(e.Steps))
		},
	}
}

// Merge composes hook sets so metrics and logging hooks can both observe
// the same events.
func Merge(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		h := h
		out = domain.LifecycleHooks{
			OnActivityEnter: chainActivity(out.OnActivityEnter, h.OnActivityEnter),
			OnActivityLeave: chainActivity(out.OnActivityLeave, h.OnActivityLeave),
			OnToolCall:      chainTool(out.OnToolCall, h.OnToolCall),
			OnToolReturn:    chainTool(out.OnToolReturn, h.OnToolReturn),
			OnTurnEnd:       chainTurn(out.OnTurnEnd, h.OnTurnEnd),
		}
	}
	return out
}

func chainActivity(a, b func(context.Context, *domain.ActivityEvent)) func(context.Context, *domain.ActivityEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.ActivityEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainTool(a, b func(context.Context, *domain.ToolEvent)) func(context.Context, *domain.ToolEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.ToolEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainTurn(a, b func(context.Context, *domain.TurnEvent)) func(context.Context, *domain.TurnEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.TurnEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
