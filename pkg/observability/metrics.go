package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for the pipeline.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// nodeDuration measures how long each graph node takes.
	//
	// Labels:
	//   - node: node name (e.g. "intent_resolver")
	//   - outcome: "continue", "suspend", "short_circuit", "error"
	nodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "palgraph",
			Subsystem: "graph",
			Name:      "node_duration_seconds",
			Help:      "Duration of graph node execution in seconds.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"node", "outcome"},
	)

	// runsTotal counts pipeline runs by how they ended.
	//
	// Labels:
	//   - result: "completed", "suspended", "error"
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "palgraph",
			Subsystem: "graph",
			Name:      "runs_total",
			Help:      "Total pipeline runs by terminal result.",
		},
		[]string{"result"},
	)

	// suspensionsTotal counts suspension requests by kind.
	//
	// Labels:
	//   - kind: "doc_choice", "action_choice", "text_input"
	suspensionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "palgraph",
			Subsystem: "graph",
			Name:      "suspensions_total",
			Help:      "Total suspension requests by kind.",
		},
		[]string{"kind"},
	)

	// classifierTokensTotal counts tokens consumed per classifier task.
	classifierTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "palgraph",
			Subsystem: "classifier",
			Name:      "tokens_total",
			Help:      "Total tokens consumed by classifier calls.",
		},
		[]string{"task"},
	)

	// classifierCostUSD accumulates estimated spend per classifier task.
	classifierCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "palgraph",
			Subsystem: "classifier",
			Name:      "cost_usd_total",
			Help:      "Estimated classifier spend in USD.",
		},
		[]string{"task"},
	)

	// classifierCallsTotal counts classifier calls by task and status.
	//
	// Labels:
	//   - task: classifier task name
	//   - status: "success", "retry", "error"
	classifierCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "palgraph",
			Subsystem: "classifier",
			Name:      "calls_total",
			Help:      "Total classifier calls by status.",
		},
		[]string{"task", "status"},
	)

	// droppedDocIDsTotal counts document ids returned by the classifier that
	// were absent from the known-id set and therefore discarded.
	droppedDocIDsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "palgraph",
			Subsystem: "resolver",
			Name:      "dropped_doc_ids_total",
			Help:      "Classifier document ids discarded as unverifiable.",
		},
	)
)

// ObserveNode records one node execution.
func ObserveNode(node, outcome string, duration time.Duration) {
	nodeDuration.WithLabelValues(node, outcome).Observe(duration.Seconds())
}

// ObserveRun records the terminal result of one pipeline run.
func ObserveRun(result string) {
	runsTotal.WithLabelValues(result).Inc()
}

// ObserveSuspension records a suspension request.
func ObserveSuspension(kind string) {
	suspensionsTotal.WithLabelValues(kind).Inc()
}

// ObserveClassifierCall records one classifier call.
func ObserveClassifierCall(task, status string, tokens int, costUSD float64) {
	classifierCallsTotal.WithLabelValues(task, status).Inc()
	if tokens > 0 {
		classifierTokensTotal.WithLabelValues(task).Add(float64(tokens))
	}
	if costUSD > 0 {
		classifierCostUSD.WithLabelValues(task).Add(costUSD)
	}
}

// ObserveDroppedDocIDs records ids discarded by the verification filter.
func ObserveDroppedDocIDs(n int) {
	if n > 0 {
		droppedDocIDsTotal.Add(float64(n))
	}
}
