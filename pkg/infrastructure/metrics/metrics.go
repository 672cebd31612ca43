// Package metrics exposes the outcome of a run as Prometheus metrics written to a
// node-exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vsinha/mixopt/pkg/domain/entities"
	"github.com/vsinha/mixopt/pkg/infrastructure/events"
)

const namespace = "mixopt"

// RunMetrics collects the metrics of one run from its event stream
type RunMetrics struct {
	registry *prometheus.Registry

	lastRun      prometheus.Gauge
	lastSuccess  prometheus.Gauge
	duration     prometheus.Gauge
	solveSeconds prometheus.Gauge
	objective    prometheus.Gauge
	decisions    prometheus.Gauge
	droppedItems prometheus.Gauge
	variables    *prometheus.GaugeVec
	allocated    *prometheus.GaugeVec
	utilization  *prometheus.GaugeVec
	margin       *prometheus.GaugeVec
	gain         *prometheus.GaugeVec
	warnings     *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

// NewRunMetrics creates the collectors on a dedicated registry
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time the last successful run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		solveSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "solve_duration_seconds",
			Help: "Time spent in the solver backend.",
		}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "objective_value",
			Help: "Objective value of the solved model.",
		}),
		decisions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "decisions",
			Help: "Number of allocation decisions in the output table.",
		}),
		droppedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dropped_items",
			Help: "Items excluded from optimization during reconciliation.",
		}),
		variables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "model_variables",
			Help: "Decision variables of the built model.",
		}, []string{"kind"}),
		allocated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "class_allocated_units",
			Help: "Units allocated per class and decision kind.",
		}, []string{"class", "kind"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "class_utilization_ratio",
			Help: "Allocated share of class production.",
		}, []string{"class"}),
		margin: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "margin_total",
			Help: "Total margin of the uniform baseline and the optimized allocation.",
		}, []string{"scenario"}),
		gain: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "improvement_percent",
			Help: "Margin gain and cost reduction against the uniform baseline.",
		}, []string{"measure"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "warnings_total",
			Help: "Recovered conditions raised during the run.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "failures_total",
			Help: "Failed runs by pipeline stage.",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.lastRun, m.lastSuccess, m.duration, m.solveSeconds, m.objective, m.decisions,
		m.droppedItems, m.variables, m.allocated, m.utilization, m.margin, m.gain,
		m.warnings, m.failures,
	)
	return m
}

// Registry returns the registry holding the run collectors
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// CanHandle accepts every run event
func (m *RunMetrics) CanHandle(string) bool {
	return true
}

// Handle updates the collectors from one run event
func (m *RunMetrics) Handle(event events.Event) error {
	switch data := event.Data().(type) {
	case events.InputReconciled:
		m.droppedItems.Set(float64(data.Dropped))
	case events.ModelBuilt:
		m.variables.WithLabelValues("order").Set(float64(data.OrderVariables))
		m.variables.WithLabelValues("surplus").Set(float64(data.SurplusVariables))
	case events.ModelSolved:
		m.solveSeconds.Set(data.Duration.Seconds())
		m.objective.Set(data.Objective)
	case events.WarningRaised:
		m.warnings.WithLabelValues(string(data.Warning.Kind)).Inc()
	case events.RunFailed:
		m.failures.WithLabelValues(data.Stage).Inc()
		m.lastRun.Set(float64(event.Timestamp().Unix()))
	case events.RunCompleted:
		m.recordCompletion(event, data)
	default:
		if event.Type() != events.RunStartedEvent && event.Type() != events.PolicyResolvedEvent &&
			event.Type() != events.DemandCappedEvent {
			return fmt.Errorf("unexpected data %T for event %s", data, event.Type())
		}
	}
	return nil
}

func (m *RunMetrics) recordCompletion(event events.Event, data events.RunCompleted) {
	ts := float64(event.Timestamp().Unix())
	m.lastRun.Set(ts)
	m.lastSuccess.Set(ts)
	m.duration.Set(data.Duration.Seconds())
	m.decisions.Set(float64(data.Decisions))

	for _, r := range data.Classes {
		m.allocated.WithLabelValues(r.Class, entities.DecisionOrder.String()).Set(r.OrderQuantity)
		m.allocated.WithLabelValues(r.Class, entities.DecisionSurplus.String()).Set(r.SurplusQuantity)
		m.utilization.WithLabelValues(r.Class).Set(r.Utilization)
	}

	c := data.Comparison
	m.margin.WithLabelValues("baseline").Set(c.MarginBaseline.InexactFloat64())
	m.margin.WithLabelValues("optimized").Set(c.MarginOptimized.InexactFloat64())
	m.gain.WithLabelValues("margin_gain").Set(c.GainPercentage.InexactFloat64())
	m.gain.WithLabelValues("cost_reduction").Set(c.ReductionPercentage.InexactFloat64())
}

// WriteTextfile writes the registry atomically in the text exposition format
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
