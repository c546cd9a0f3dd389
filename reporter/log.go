// Package reporter holds the consumers of the per-cycle result feed.
package reporter

import (
	"context"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/types"
	bmath "github.com/michaelpento.lv/arbbot/utils/math"
)

// LogSink writes one log line per path and a cycle summary.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("report")}
}

func (s *LogSink) Report(_ context.Context, report *types.CycleReport) error {
	for _, res := range report.Results {
		fields := []zap.Field{
			zap.Uint64("cycle", report.Cycle),
			zap.String("path", res.PathName),
		}
		if opp := res.Opportunity; opp != nil {
			decimals := opp.Path.Base().Decimals
			fields = append(fields,
				zap.String("route", opp.Path.Label()),
				zap.String("amount_in", bmath.FormatUnits(opp.AmountIn, decimals)),
				zap.String("amount_out", bmath.FormatUnits(opp.AmountOut, decimals)),
				zap.Float64("profit_percent", res.ProfitPct))
		}

		switch {
		case res.Err != "":
			s.logger.Warn("Path evaluation failed",
				append(fields, zap.String("kind", res.ErrKind), zap.String("error", res.Err))...)
		case res.Found:
			if ex := res.Execution; ex != nil {
				fields = append(fields,
					zap.String("state", ex.State),
					zap.Bool("unknown", ex.Unknown),
					zap.String("handle", ex.Handle))
			}
			s.logger.Info("Arbitrage opportunity found", fields...)
		default:
			s.logger.Debug("No opportunity", fields...)
		}
	}

	s.logger.Info("Cycle complete",
		zap.Uint64("cycle", report.Cycle),
		zap.Int("paths", len(report.Results)),
		zap.Int("opportunities", report.Opportunities()),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return nil
}
