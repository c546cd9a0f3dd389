package arbitrage

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"
)

func newTestScheduler(t *testing.T, cfg SchedulerConfig, exec Executor, paths []types.SwapPath, sink ResultSink, clock Clock, quoters ...dex.Quoter) *Scheduler {
	t.Helper()
	var sinks []ResultSink
	if sink != nil {
		sinks = append(sinks, sink)
	}
	return NewScheduler(cfg, newTestDetector(t, nil, "0.5", quoters...), exec, paths, sinks, clock, zaptest.NewLogger(t))
}

func profitableVenues() (*rateQuoter, *rateQuoter) {
	return newRateQuoter("uniswap").withRate(weth, usdc, 2000, 1),
		newRateQuoter("sushiswap").withRate(usdc, weth, 1, 1988)
}

func TestScheduler_RunCycleRequotesEveryCycle(t *testing.T) {
	uni, sushi := profitableVenues()
	paths := []types.SwapPath{roundTrip("a", 1_000_000, "uniswap", "sushiswap")}
	s := newTestScheduler(t, SchedulerConfig{MaxConcurrentPaths: 2, DryRun: true}, nil, paths, nil, newFakeClock(), uni, sushi)

	first := s.RunCycle(context.Background())
	second := s.RunCycle(context.Background())

	assert.Equal(t, uint64(1), first.Cycle)
	assert.Equal(t, uint64(2), second.Cycle)
	assert.Equal(t, int64(2), uni.calls.Load())
	assert.Equal(t, int64(2), sushi.calls.Load())
	assert.Equal(t, first.Results[0].ProfitPct, second.Results[0].ProfitPct)
	assert.Equal(t, first.Results[0].Found, second.Results[0].Found)
}

func TestScheduler_FailingPathIsIsolated(t *testing.T) {
	uni, sushi := profitableVenues()
	broken := newRateQuoter("broken")
	broken.err = dex.Unreachable("broken", errors.New("connection reset"))
	exploding := newRateQuoter("exploding")
	exploding.panic = true

	paths := []types.SwapPath{
		roundTrip("good", 1_000_000, "uniswap", "sushiswap"),
		roundTrip("bad", 1_000_000, "broken", "sushiswap"),
		roundTrip("panics", 1_000_000, "exploding", "sushiswap"),
		roundTrip("flat", 1_000_000, "uniswap", "uniswap"),
	}
	exec := &recordingExecutor{}
	s := newTestScheduler(t, SchedulerConfig{MaxConcurrentPaths: 4}, exec, paths, nil, newFakeClock(), uni, sushi, broken, exploding)

	report := s.RunCycle(context.Background())
	require.Len(t, report.Results, 4)

	good := report.Results[0]
	assert.Equal(t, "good", good.PathName)
	assert.True(t, good.Found)
	require.NotNil(t, good.Execution)
	assert.Equal(t, "Verified", good.Execution.State)

	bad := report.Results[1]
	assert.False(t, bad.Found)
	assert.Equal(t, "venue_unreachable", bad.ErrKind)
	assert.Nil(t, bad.Execution)

	panicked := report.Results[2]
	assert.False(t, panicked.Found)
	assert.Equal(t, "panic", panicked.ErrKind)

	// uniswap has no USDC -> WETH rate
	flat := report.Results[3]
	assert.Equal(t, "quote_unavailable", flat.ErrKind)

	assert.Equal(t, 1, exec.count())
	assert.Equal(t, 1, report.Opportunities())
}

func TestScheduler_DryRunSkipsExecution(t *testing.T) {
	uni, sushi := profitableVenues()
	exec := &recordingExecutor{}
	paths := []types.SwapPath{roundTrip("a", 1_000_000, "uniswap", "sushiswap")}
	s := newTestScheduler(t, SchedulerConfig{DryRun: true}, exec, paths, nil, newFakeClock(), uni, sushi)

	report := s.RunCycle(context.Background())
	assert.True(t, report.Results[0].Found)
	assert.Nil(t, report.Results[0].Execution)
	assert.Equal(t, 0, exec.count())
}

func TestScheduler_UnprofitableSkipsExecution(t *testing.T) {
	uni := newRateQuoter("uniswap").withRate(weth, usdc, 2000, 1)
	sushi := newRateQuoter("sushiswap").withRate(usdc, weth, 1, 2000)
	exec := &recordingExecutor{}
	paths := []types.SwapPath{roundTrip("a", 1_000_000, "uniswap", "sushiswap")}
	s := newTestScheduler(t, SchedulerConfig{}, exec, paths, nil, newFakeClock(), uni, sushi)

	report := s.RunCycle(context.Background())
	assert.False(t, report.Results[0].Found)
	assert.Empty(t, report.Results[0].Err)
	assert.Equal(t, 0, exec.count())
}

type gaugeQuoter struct {
	*rateQuoter
	inflight atomic.Int64
	peak     atomic.Int64
}

func (g *gaugeQuoter) Quote(ctx context.Context, in, out types.Token, amountIn *big.Int) (*big.Int, error) {
	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return g.rateQuoter.Quote(ctx, in, out, amountIn)
}

func TestScheduler_RespectsConcurrencyLimit(t *testing.T) {
	g := &gaugeQuoter{rateQuoter: newRateQuoter("v").withRate(weth, usdc, 1, 1).withRate(usdc, weth, 1, 1)}
	paths := make([]types.SwapPath, 6)
	for i := range paths {
		paths[i] = roundTrip("p", int64(100+i), "v", "v")
	}
	s := newTestScheduler(t, SchedulerConfig{MaxConcurrentPaths: 2, DryRun: true}, nil, paths, nil, newFakeClock(), g)

	report := s.RunCycle(context.Background())
	assert.Len(t, report.Results, 6)
	assert.LessOrEqual(t, g.peak.Load(), int64(2))
	assert.Equal(t, int64(12), g.calls.Load())
}

func TestScheduler_RunTicksAndStops(t *testing.T) {
	uni, sushi := profitableVenues()
	clock := newFakeClock()
	sink := newRecordingSink()
	paths := []types.SwapPath{roundTrip("a", 1_000_000, "uniswap", "sushiswap")}
	s := newTestScheduler(t, SchedulerConfig{Interval: time.Minute, DryRun: true}, nil, paths, sink, clock, uni, sushi)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// First cycle runs without waiting for a tick.
	r1 := <-sink.ch
	assert.Equal(t, uint64(1), r1.Cycle)

	clock.Tick()
	r2 := <-sink.ch
	assert.Equal(t, uint64(2), r2.Cycle)
	assert.True(t, r2.StartedAt.After(r1.StartedAt))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.True(t, clock.ticker.stopped.Load())
	assert.Equal(t, int64(2), uni.calls.Load())
}

func TestScheduler_ShutdownFinishesInFlightCycle(t *testing.T) {
	uni, sushi := profitableVenues()
	uni.delay = 100 * time.Millisecond
	sink := newRecordingSink()
	paths := []types.SwapPath{
		roundTrip("a", 1_000_000, "uniswap", "sushiswap"),
		roundTrip("b", 2_000_000, "uniswap", "sushiswap"),
	}
	s := newTestScheduler(t, SchedulerConfig{Interval: time.Minute, MaxConcurrentPaths: 2, DryRun: true}, nil, paths, sink, newFakeClock(), uni, sushi)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	require.Len(t, sink.reports, 1)
	for _, res := range sink.reports[0].Results {
		assert.Empty(t, res.Err, res.PathName)
		assert.True(t, res.Found, res.PathName)
	}
}

func TestScheduler_PathTimeout(t *testing.T) {
	slow := newRateQuoter("slow").withRate(weth, usdc, 1, 1).withRate(usdc, weth, 1, 1)
	slow.delay = time.Second
	paths := []types.SwapPath{roundTrip("a", 100, "slow", "slow")}
	s := newTestScheduler(t, SchedulerConfig{PathTimeout: 20 * time.Millisecond, DryRun: true}, nil, paths, nil, newFakeClock(), slow)

	report := s.RunCycle(context.Background())
	assert.False(t, report.Results[0].Found)
	assert.Equal(t, "venue_unreachable", report.Results[0].ErrKind)
}

// cancellingQuoter cancels the run on its first quote.
type cancellingQuoter struct {
	*rateQuoter
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancellingQuoter) Quote(ctx context.Context, in, out types.Token, amountIn *big.Int) (*big.Int, error) {
	c.once.Do(c.cancel)
	return c.rateQuoter.Quote(ctx, in, out, amountIn)
}

func TestScheduler_NoCycleAfterShutdown(t *testing.T) {
	// With a tick always pending, select between ctx.Done and the ticker
	// is a coin flip; repeat to make a stray cycle show up.
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		uni, sushi := profitableVenues()
		q := &cancellingQuoter{rateQuoter: uni, cancel: cancel}

		clock := newFakeClock()
		clock.ticker.ch = make(chan time.Time, 64)
		for len(clock.ticker.ch) < cap(clock.ticker.ch) {
			clock.ticker.ch <- clock.Now()
		}

		sink := newRecordingSink()
		paths := []types.SwapPath{roundTrip("a", 1_000_000, "uniswap", "sushiswap")}
		s := newTestScheduler(t, SchedulerConfig{Interval: time.Minute, DryRun: true}, nil, paths, sink, clock, q, sushi)

		require.NoError(t, s.Run(ctx))
		require.Len(t, sink.reports, 1, "run %d", i)
		assert.Equal(t, int64(1), uni.calls.Load())
		cancel()
	}
}
