package dex

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/arbbot/types"
)

// RateLimited throttles calls to an inner quoter. A call that cannot get a
// token within waitTimeout fails as ErrVenueUnreachable.
type RateLimited struct {
	inner       Quoter
	limiter     *rate.Limiter
	waitTimeout time.Duration
}

// NewRateLimited wraps q with a token bucket of rps and burst.
func NewRateLimited(q Quoter, rps float64, burst int, waitTimeout time.Duration) *RateLimited {
	return &RateLimited{
		inner:       q,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		waitTimeout: waitTimeout,
	}
}

func (r *RateLimited) ID() string {
	return r.inner.ID()
}

func (r *RateLimited) Quote(ctx context.Context, in, out types.Token, amountIn *big.Int) (*big.Int, error) {
	waitCtx := ctx
	if r.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.waitTimeout)
		defer cancel()
	}
	if err := r.limiter.Wait(waitCtx); err != nil {
		return nil, Unreachable(r.ID(), fmt.Errorf("rate limit wait: %w", err))
	}
	return r.inner.Quote(ctx, in, out, amountIn)
}
