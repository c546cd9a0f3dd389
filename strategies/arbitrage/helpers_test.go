package arbitrage

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"
)

var (
	weth = types.Token{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18}
	usdc = types.Token{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6}
	dai  = types.Token{Symbol: "DAI", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18}
)

// rateQuoter multiplies the input by num/den per pair and counts calls.
type rateQuoter struct {
	id    string
	rates map[string][2]int64
	err   error
	panic bool
	delay time.Duration
	calls atomic.Int64
}

func pairKey(in, out types.Token) string {
	return strings.ToLower(in.Address) + ">" + strings.ToLower(out.Address)
}

func newRateQuoter(id string) *rateQuoter {
	return &rateQuoter{id: id, rates: map[string][2]int64{}}
}

func (q *rateQuoter) withRate(in, out types.Token, num, den int64) *rateQuoter {
	q.rates[pairKey(in, out)] = [2]int64{num, den}
	return q
}

func (q *rateQuoter) ID() string { return q.id }

func (q *rateQuoter) Quote(ctx context.Context, in, out types.Token, amountIn *big.Int) (*big.Int, error) {
	q.calls.Add(1)
	if q.panic {
		panic("venue exploded")
	}
	if q.delay > 0 {
		select {
		case <-time.After(q.delay):
		case <-ctx.Done():
			return nil, dex.Unreachable(q.id, ctx.Err())
		}
	}
	if q.err != nil {
		return nil, q.err
	}
	r, ok := q.rates[pairKey(in, out)]
	if !ok {
		return nil, dex.Unavailable(q.id, nil)
	}
	res := new(big.Int).Mul(amountIn, big.NewInt(r[0]))
	return res.Quo(res, big.NewInt(r[1])), nil
}

func newRegistry(t *testing.T, quoters ...dex.Quoter) *dex.Registry {
	t.Helper()
	reg, err := dex.NewRegistry(quoters...)
	require.NoError(t, err)
	return reg
}

func roundTrip(name string, amount int64, venues ...string) types.SwapPath {
	return types.SwapPath{
		Name:     name,
		Tokens:   []types.Token{weth, usdc, weth},
		Venues:   venues,
		AmountIn: big.NewInt(amount),
	}
}

type fixedCost struct {
	cost *big.Int
	err  error
}

func (f fixedCost) EstimateCost(context.Context, types.SwapPath) (*big.Int, error) {
	return f.cost, f.err
}

// fakeClock hands out a single manually driven ticker.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ticker: &fakeTicker{ch: make(chan time.Time)},
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker { return c.ticker }

func (c *fakeClock) Tick() {
	c.mu.Lock()
	c.now = c.now.Add(time.Minute)
	now := c.now
	c.mu.Unlock()
	c.ticker.ch <- now
}

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

// recordingSink collects cycle reports.
type recordingSink struct {
	mu      sync.Mutex
	reports []*types.CycleReport
	ch      chan *types.CycleReport
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan *types.CycleReport, 16)}
}

func (s *recordingSink) Report(_ context.Context, r *types.CycleReport) error {
	s.mu.Lock()
	s.reports = append(s.reports, r)
	s.mu.Unlock()
	s.ch <- r
	return nil
}

// recordingExecutor marks every opportunity as verified.
type recordingExecutor struct {
	mu    sync.Mutex
	calls []string
}

func (e *recordingExecutor) Execute(_ context.Context, opp *types.ArbitrageOpportunity) *types.ExecutionOutcome {
	e.mu.Lock()
	e.calls = append(e.calls, opp.Path.Name)
	e.mu.Unlock()
	return &types.ExecutionOutcome{OpportunityID: opp.ID, PathName: opp.Path.Name, State: "Verified", Succeeded: true}
}

func (e *recordingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}
