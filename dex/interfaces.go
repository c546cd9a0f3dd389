package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/michaelpento.lv/arbbot/types"
)

var (
	// ErrQuoteUnavailable means the venue has no liquidity or route for the pair.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrVenueUnreachable is a transient I/O failure talking to the venue.
	ErrVenueUnreachable = errors.New("venue unreachable")
)

// Quoter is a read-only price source for one venue. Amounts are integer base
// units of the respective token.
type Quoter interface {
	// ID returns the venue's stable identifier.
	ID() string

	// Quote returns the output amount for swapping amountIn of in into out.
	Quote(ctx context.Context, in, out types.Token, amountIn *big.Int) (*big.Int, error)
}

// Unavailable wraps err so that it matches ErrQuoteUnavailable.
func Unavailable(venue string, err error) error {
	return &QuoteError{Venue: venue, Kind: ErrQuoteUnavailable, Err: err}
}

// Unreachable wraps err so that it matches ErrVenueUnreachable.
func Unreachable(venue string, err error) error {
	return &QuoteError{Venue: venue, Kind: ErrVenueUnreachable, Err: err}
}

// QuoteError carries the venue and failure kind of a quote error.
type QuoteError struct {
	Venue string
	Kind  error
	Err   error
}

func (e *QuoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Venue, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Venue, e.Kind, e.Err)
}

func (e *QuoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind maps an error onto a short label for reporting.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuoteUnavailable):
		return "quote_unavailable"
	case errors.Is(err, ErrVenueUnreachable):
		return "venue_unreachable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

// Registry resolves venue IDs to quoters.
type Registry struct {
	quoters map[string]Quoter
}

// NewRegistry builds a registry and rejects duplicate IDs.
func NewRegistry(quoters ...Quoter) (*Registry, error) {
	r := &Registry{quoters: make(map[string]Quoter, len(quoters))}
	for _, q := range quoters {
		if _, ok := r.quoters[q.ID()]; ok {
			return nil, fmt.Errorf("duplicate venue id %q", q.ID())
		}
		r.quoters[q.ID()] = q
	}
	return r, nil
}

// Get returns the quoter registered under id.
func (r *Registry) Get(id string) (Quoter, bool) {
	q, ok := r.quoters[id]
	return q, ok
}

// IDs lists the registered venue IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.quoters))
	for id := range r.quoters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
