package flashloan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/types"
	bmath "github.com/michaelpento.lv/arbbot/utils/math"
)

const (
	DefaultCostMultiplierBps = 12000
	DefaultSettlementTimeout = 2 * time.Minute
)

// CoordinatorConfig bounds every attempt.
type CoordinatorConfig struct {
	CostMultiplierBps uint64
	Timeout           time.Duration
}

// Coordinator drives opportunities through a single ExecutionTarget. It never
// retries: every attempt ends in exactly one terminal state.
type Coordinator struct {
	target  ExecutionTarget
	cfg     CoordinatorConfig
	now     func() time.Time
	logger  *zap.Logger
	metrics struct {
		attempts  *prometheus.CounterVec
		latency   prometheus.Histogram
		inFlight  prometheus.Gauge
		budgetRaw prometheus.Histogram
	}
}

// NewCoordinator creates a coordinator. Metrics are registered on reg when
// it is not nil.
func NewCoordinator(target ExecutionTarget, cfg CoordinatorConfig, reg prometheus.Registerer, logger *zap.Logger) *Coordinator {
	if cfg.CostMultiplierBps == 0 {
		cfg.CostMultiplierBps = DefaultCostMultiplierBps
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSettlementTimeout
	}

	c := &Coordinator{
		target: target,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Named("coordinator").With(zap.String("target", target.Name())),
	}

	f := promauto.With(reg)
	c.metrics.attempts = f.NewCounterVec(prometheus.CounterOpts{
		Name: "flashloan_attempts_total",
		Help: "Execution attempts by terminal state",
	}, []string{"target", "state"})
	c.metrics.latency = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashloan_execution_latency_seconds",
		Help:    "Latency of execution attempts from estimate to terminal state",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	c.metrics.inFlight = f.NewGauge(prometheus.GaugeOpts{
		Name: "flashloan_active_attempts",
		Help: "Number of execution attempts currently in progress",
	})
	c.metrics.budgetRaw = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashloan_raw_cost",
		Help:    "Raw cost estimates in the target's native unit",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 10),
	})

	return c
}

// Execute runs one attempt to a terminal state and returns its outcome.
//
// Cancellation of ctx is honoured up to submission. Once a transaction is
// out, settlement is awaited on a detached context bounded by the configured
// timeout.
func (c *Coordinator) Execute(ctx context.Context, opp *types.ArbitrageOpportunity) *types.ExecutionOutcome {
	return c.Attempt(ctx, opp).Outcome()
}

// Attempt is Execute returning the full attempt record.
func (c *Coordinator) Attempt(ctx context.Context, opp *types.ArbitrageOpportunity) *Attempt {
	a := &Attempt{
		ID:          uuid.NewString(),
		Opportunity: opp,
		Request:     NewRequest(opp),
		State:       StatePending,
		StartedAt:   c.now(),
	}
	log := c.logger.With(zap.String("attempt", a.ID), zap.String("opportunity", opp.ID))

	c.metrics.inFlight.Inc()
	defer func() {
		c.metrics.inFlight.Dec()
		a.FinishedAt = c.now()
		c.metrics.attempts.WithLabelValues(c.target.Name(), a.State.String()).Inc()
		c.metrics.latency.Observe(a.FinishedAt.Sub(a.StartedAt).Seconds())
		c.logOutcome(log, a)
	}()

	if err := ctx.Err(); err != nil {
		c.fail(a, StateSubmissionFailed, ErrSubmission, fmt.Errorf("cancelled before submission: %w", err))
		return a
	}

	raw, err := c.target.EstimateCost(ctx, a.Request)
	if err != nil {
		c.fail(a, StateCostEstimationFailed, ErrCostEstimation, err)
		return a
	}
	if raw == nil || raw.Sign() <= 0 {
		c.fail(a, StateCostEstimationFailed, ErrCostEstimation, fmt.Errorf("non-positive cost %v", raw))
		return a
	}
	a.RawCost = raw
	a.Budget = bmath.ApplyBps(raw, c.cfg.CostMultiplierBps)
	a.State = StateCostEstimated
	rawF, _ := new(big.Float).SetInt(raw).Float64()
	c.metrics.budgetRaw.Observe(rawF)
	log.Debug("Cost estimated", zap.String("raw", raw.String()), zap.String("budget", a.Budget.String()))

	if err := ctx.Err(); err != nil {
		c.fail(a, StateSubmissionFailed, ErrSubmission, fmt.Errorf("cancelled before submission: %w", err))
		return a
	}

	h, err := c.target.Submit(ctx, a.Request, a.Budget)
	if err != nil {
		c.fail(a, StateSubmissionFailed, ErrSubmission, err)
		return a
	}
	a.Handle = h
	a.State = StateSubmitted
	log.Info("Arbitrage transaction submitted", zap.String("handle", h.ID), zap.Bool("private", h.Private))

	// The transaction is out; shutdown must not orphan it.
	settleCtx := context.WithoutCancel(ctx)
	s, err := c.target.AwaitSettlement(settleCtx, h, c.cfg.Timeout)
	switch {
	case errors.Is(err, ErrSettlementTimeout), errors.Is(err, context.DeadlineExceeded):
		c.fail(a, StateTimedOut, ErrSettlementTimeout, err)
		return a
	case err != nil:
		// The transaction may still land; the result is indeterminate.
		c.fail(a, StateTimedOut, ErrSettlementTimeout, fmt.Errorf("failed to await settlement: %w", err))
		return a
	}
	a.Settlement = s
	if !s.Settled {
		c.fail(a, StateReverted, ErrReverted, fmt.Errorf("handle %s at %s", h.ID, s.Ref))
		return a
	}
	a.State = StateConfirmed

	if _, ok := MatchEvent(s.Events, a.Request); !ok {
		c.fail(a, StateEventNotFound, ErrEventNotFound,
			fmt.Errorf("no %s event for %s %s in %d events", ArbitrageEventName, a.Request.Amount, a.Request.BorrowToken.Symbol, len(s.Events)))
		return a
	}
	a.State = StateVerified
	return a
}

func (c *Coordinator) fail(a *Attempt, state AttemptState, stage, cause error) {
	a.State = state
	if errors.Is(cause, stage) {
		a.Err = cause
		return
	}
	a.Err = fmt.Errorf("%w: %w", stage, cause)
}

func (c *Coordinator) logOutcome(log *zap.Logger, a *Attempt) {
	fields := []zap.Field{
		zap.String("state", a.State.String()),
		zap.Duration("duration", a.FinishedAt.Sub(a.StartedAt)),
	}
	if a.Handle.ID != "" {
		fields = append(fields, zap.String("handle", a.Handle.ID))
	}
	switch {
	case a.State == StateVerified:
		log.Info("Arbitrage executed", fields...)
	case a.State.Unknown():
		log.Error("Arbitrage outcome unknown, manual reconciliation required", append(fields, zap.Error(a.Err))...)
	default:
		log.Warn("Arbitrage attempt failed", append(fields, zap.Error(a.Err))...)
	}
}
