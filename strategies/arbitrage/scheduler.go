package arbitrage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"
)

// Executor drives an opportunity to a terminal outcome.
// *flashloan.Coordinator implements it.
type Executor interface {
	Execute(ctx context.Context, opp *types.ArbitrageOpportunity) *types.ExecutionOutcome
}

// ResultSink consumes the per-cycle result feed.
type ResultSink interface {
	Report(ctx context.Context, report *types.CycleReport) error
}

// SchedulerConfig holds the loop settings.
type SchedulerConfig struct {
	Interval           time.Duration
	MaxConcurrentPaths int
	// PathTimeout bounds one path's evaluation, detached from shutdown.
	PathTimeout time.Duration
	DryRun      bool
}

// Scheduler runs the evaluation cycle over a fixed path list.
type Scheduler struct {
	cfg      SchedulerConfig
	detector *Detector
	executor Executor
	paths    []types.SwapPath
	sinks    []ResultSink
	clock    Clock
	logger   *zap.Logger
	cycle    atomic.Uint64
}

// NewScheduler creates a scheduler. executor may be nil for detection only.
func NewScheduler(cfg SchedulerConfig, detector *Detector, executor Executor, paths []types.SwapPath, sinks []ResultSink, clock Clock, logger *zap.Logger) *Scheduler {
	if cfg.MaxConcurrentPaths <= 0 {
		cfg.MaxConcurrentPaths = 1
	}
	if cfg.PathTimeout <= 0 {
		cfg.PathTimeout = 30 * time.Second
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		cfg:      cfg,
		detector: detector,
		executor: executor,
		paths:    paths,
		sinks:    sinks,
		clock:    clock,
		logger:   logger.Named("scheduler"),
	}
}

// Run evaluates all paths immediately and then once per interval until ctx is
// cancelled. No cycle starts after ctx is cancelled; the cycle in flight at
// that point is completed before Run returns. Run only returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting arbitrage monitoring",
		zap.Int("paths", len(s.paths)),
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("dry_run", s.cfg.DryRun))

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		// A tick may already be pending when ctx is cancelled; select would
		// then pick either case.
		if ctx.Err() != nil {
			s.logger.Info("Arbitrage monitoring stopped", zap.Uint64("cycles", s.cycle.Load()))
			return nil
		}
		s.RunCycle(ctx)

		select {
		case <-ctx.Done():
		case <-ticker.C():
		}
	}
}

// RunCycle evaluates every path once and publishes the report.
func (s *Scheduler) RunCycle(ctx context.Context) *types.CycleReport {
	cycle := s.cycle.Add(1)
	report := &types.CycleReport{
		Cycle:     cycle,
		StartedAt: s.clock.Now(),
		Results:   make([]types.PathResult, len(s.paths)),
	}
	s.logger.Info("Checking for arbitrage opportunities", zap.Uint64("cycle", cycle))

	// Quote calls must not be interrupted by shutdown mid-cycle.
	evalCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentPaths)
	for i := range s.paths {
		i := i
		g.Go(func() error {
			report.Results[i] = s.runPath(ctx, evalCtx, s.paths[i], cycle)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.clock.Now()
	s.publish(ctx, report)
	return report
}

// runPath is the isolated pipeline for one path. Failures and panics end up
// in the result and never escape.
func (s *Scheduler) runPath(runCtx, evalCtx context.Context, path types.SwapPath, cycle uint64) (res types.PathResult) {
	res = types.PathResult{PathName: path.Name, PathKey: path.Key()}
	log := s.logger.With(zap.String("path", path.Name), zap.Uint64("cycle", cycle))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Path pipeline panicked", zap.Any("panic", r))
			res.Found = false
			res.Err = fmt.Sprintf("panic: %v", r)
			res.ErrKind = "panic"
		}
	}()

	pathCtx, cancel := context.WithTimeout(evalCtx, s.cfg.PathTimeout)
	opp, err := s.detector.Detect(pathCtx, path, cycle)
	cancel()
	if err != nil {
		log.Warn("Path evaluation failed", zap.Error(err))
		res.Err = err.Error()
		res.ErrKind = dex.Kind(err)
		return res
	}

	res.Opportunity = opp
	res.ProfitPct = opp.ProfitPercent
	res.Found = opp.Profitable
	if !opp.Profitable {
		log.Info("No profitable arbitrage", zap.Float64("profit_percent", opp.ProfitPercent))
		return res
	}

	log.Info("Found profitable arbitrage",
		zap.String("route", path.Label()),
		zap.String("profit", opp.ProfitAbsolute.String()),
		zap.Float64("profit_percent", opp.ProfitPercent))

	if s.cfg.DryRun || s.executor == nil {
		return res
	}
	// The run context is passed on so no new submission starts after
	// shutdown; the executor detaches once a submission is out.
	res.Execution = s.executor.Execute(runCtx, opp)
	return res
}

func (s *Scheduler) publish(ctx context.Context, report *types.CycleReport) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	for _, sink := range s.sinks {
		if err := sink.Report(pubCtx, report); err != nil {
			s.logger.Warn("Failed to publish cycle report", zap.Uint64("cycle", report.Cycle), zap.Error(err))
		}
	}
}
