package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"
)

// ErrUnknownVenue is returned when a hop references an unregistered venue.
var ErrUnknownVenue = errors.New("unknown venue")

// VenueSource resolves venue IDs. *dex.Registry implements it.
type VenueSource interface {
	Get(id string) (dex.Quoter, bool)
}

// HopError reports which hop aborted a path evaluation.
type HopError struct {
	Index int
	Hop   types.Hop
	Err   error
}

func (e *HopError) Error() string {
	return fmt.Sprintf("hop %d %s -> %s via %s: %v", e.Index, e.Hop.From.Symbol, e.Hop.To.Symbol, e.Hop.VenueID, e.Err)
}

func (e *HopError) Unwrap() error {
	return e.Err
}

// Evaluation is the raw round-trip result of a path before any gating.
type Evaluation struct {
	Path      types.SwapPath
	AmountIn  *big.Int
	AmountOut *big.Int
	Quotes    []types.VenueQuote
}

// Evaluator chains venue quotes along a path.
type Evaluator struct {
	venues VenueSource
}

// NewEvaluator creates a path evaluator over the given venues.
func NewEvaluator(venues VenueSource) *Evaluator {
	return &Evaluator{venues: venues}
}

// Evaluate quotes every hop in order, feeding each hop's output into the next
// hop's input unchanged. The first failing hop aborts the whole path.
func (e *Evaluator) Evaluate(ctx context.Context, path types.SwapPath, amountIn *big.Int) (*Evaluation, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("amount in must be positive")
	}

	hops := path.Hops()
	quotes := make([]types.VenueQuote, 0, len(hops))
	running := new(big.Int).Set(amountIn)

	for i, hop := range hops {
		venue, ok := e.venues.Get(hop.VenueID)
		if !ok {
			return nil, &HopError{Index: i, Hop: hop, Err: ErrUnknownVenue}
		}

		out, err := venue.Quote(ctx, hop.From, hop.To, new(big.Int).Set(running))
		if err != nil {
			return nil, &HopError{Index: i, Hop: hop, Err: err}
		}
		if out == nil || out.Sign() <= 0 {
			return nil, &HopError{Index: i, Hop: hop, Err: dex.Unavailable(hop.VenueID, fmt.Errorf("non-positive output"))}
		}

		quotes = append(quotes, types.VenueQuote{
			InputToken:  hop.From,
			OutputToken: hop.To,
			AmountIn:    new(big.Int).Set(running),
			AmountOut:   new(big.Int).Set(out),
			VenueID:     hop.VenueID,
		})
		running = new(big.Int).Set(out)
	}

	return &Evaluation{
		Path:      path,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: running,
		Quotes:    quotes,
	}, nil
}
