package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every engine metric.
const DefaultNamespace = "arbbot"

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

type ArbitrageMetrics struct {
	Cycles         prometheus.Counter
	CycleDuration  prometheus.Histogram
	PathsEvaluated prometheus.Counter
	PathFailures   *prometheus.CounterVec
	Opportunities  prometheus.Counter
	Executions     *prometheus.CounterVec
	ProfitPercent  *prometheus.GaugeVec
}

// NewArbitrageMetrics creates the scheduler metrics on reg. A nil reg leaves
// them unregistered.
func NewArbitrageMetrics(namespace string, reg prometheus.Registerer) *ArbitrageMetrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := promauto.With(reg)
	return &ArbitrageMetrics{
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of evaluation cycles",
		}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one evaluation cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		PathsEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paths_evaluated_total",
			Help:      "Total number of path evaluations",
		}),
		PathFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_failures_total",
			Help:      "Path evaluations that failed, by error kind",
		}, []string{"kind"}),
		Opportunities: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Total number of paths that passed the profitability gate",
		}),
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Execution outcomes by terminal state",
		}, []string{"state"}),
		ProfitPercent: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profit_percent",
			Help:      "Net profit percent of the last evaluation of each path",
		}, []string{"path"}),
	}
}
