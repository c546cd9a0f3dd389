package reporter

import (
	"context"

	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
)

// MetricsSink feeds cycle reports into Prometheus.
type MetricsSink struct {
	m *metrics.ArbitrageMetrics
}

func NewMetricsSink(m *metrics.ArbitrageMetrics) *MetricsSink {
	return &MetricsSink{m: m}
}

func (s *MetricsSink) Report(_ context.Context, report *types.CycleReport) error {
	s.m.Cycles.Inc()
	s.m.CycleDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	for _, res := range report.Results {
		s.m.PathsEvaluated.Inc()
		if res.ErrKind != "" {
			s.m.PathFailures.WithLabelValues(res.ErrKind).Inc()
			continue
		}
		s.m.ProfitPercent.WithLabelValues(res.PathName).Set(res.ProfitPct)
		if res.Found {
			s.m.Opportunities.Inc()
		}
		if res.Execution != nil {
			s.m.Executions.WithLabelValues(res.Execution.State).Inc()
		}
	}
	return nil
}
