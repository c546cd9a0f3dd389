package jupiter

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"
)

var (
	sol  = types.Token{Symbol: "SOL", Address: "So11111111111111111111111111111111111111112", Decimals: 9}
	usdc = types.Token{Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6}
)

func newTestQuoter(t *testing.T, handler http.HandlerFunc) (*Quoter, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	q := NewQuoter(Config{
		ID:            "jupiter",
		BaseURL:       srv.URL,
		MaxTries:      3,
		RetryInterval: time.Millisecond,
	}, zaptest.NewLogger(t))
	return q, &calls
}

func TestQuote(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		q, calls := newTestQuoter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/quote", r.URL.Path)
			assert.Equal(t, sol.Address, r.URL.Query().Get("inputMint"))
			assert.Equal(t, usdc.Address, r.URL.Query().Get("outputMint"))
			assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
			assert.Equal(t, "50", r.URL.Query().Get("slippageBps"))
			_ = json.NewEncoder(w).Encode(QuoteResponse{
				InputMint:  sol.Address,
				InAmount:   "1000000000",
				OutputMint: usdc.Address,
				OutAmount:  "151234567",
				RoutePlan:  []RoutePlanStep{{SwapInfo: SwapInfo{Label: "Orca"}, Percent: 100}},
			})
		})

		out, err := q.Quote(context.Background(), sol, usdc, big.NewInt(1_000_000_000))
		require.NoError(t, err)
		assert.Equal(t, int64(151234567), out.Int64())
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("NoRouteIsUnavailableWithoutRetry", func(t *testing.T) {
		q, calls := newTestQuoter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"No routes found","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`))
		})

		_, err := q.Quote(context.Background(), sol, usdc, big.NewInt(1000))
		assert.ErrorIs(t, err, dex.ErrQuoteUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("ServerErrorRetriedThenUnreachable", func(t *testing.T) {
		q, calls := newTestQuoter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := q.Quote(context.Background(), sol, usdc, big.NewInt(1000))
		assert.ErrorIs(t, err, dex.ErrVenueUnreachable)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("RecoversAfterTransientFailure", func(t *testing.T) {
		var n atomic.Int32
		q, _ := newTestQuoter(t, func(w http.ResponseWriter, r *http.Request) {
			if n.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_ = json.NewEncoder(w).Encode(QuoteResponse{
				OutAmount: "42",
				RoutePlan: []RoutePlanStep{{Percent: 100}},
			})
		})

		out, err := q.Quote(context.Background(), sol, usdc, big.NewInt(1000))
		require.NoError(t, err)
		assert.Equal(t, int64(42), out.Int64())
	})

	t.Run("EmptyRoutePlan", func(t *testing.T) {
		q, _ := newTestQuoter(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(QuoteResponse{OutAmount: "42"})
		})

		_, err := q.Quote(context.Background(), sol, usdc, big.NewInt(1000))
		assert.ErrorIs(t, err, dex.ErrQuoteUnavailable)
	})

	t.Run("AmountOutOfRange", func(t *testing.T) {
		q, calls := newTestQuoter(t, func(w http.ResponseWriter, r *http.Request) {})
		huge := new(big.Int).Lsh(big.NewInt(1), 70)

		_, err := q.Quote(context.Background(), sol, usdc, huge)
		assert.ErrorIs(t, err, dex.ErrQuoteUnavailable)
		assert.Equal(t, int32(0), calls.Load())
	})
}
