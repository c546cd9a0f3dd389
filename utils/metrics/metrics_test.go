package metrics

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/types"
)

func TestArbitrageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewArbitrageMetrics("test", reg)

	m.Cycles.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Cycles))

	m.PathFailures.WithLabelValues("venue_unreachable").Inc()
	m.PathFailures.WithLabelValues("venue_unreachable").Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PathFailures.WithLabelValues("venue_unreachable")))

	m.ProfitPercent.WithLabelValues("weth-usdc").Set(0.75)
	assert.Equal(t, 0.75, testutil.ToFloat64(m.ProfitPercent.WithLabelValues("weth-usdc")))

	count, err := testutil.GatherAndCount(reg, "test_cycles_total", "test_path_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestArbitrageMetricsUnregistered(t *testing.T) {
	a := NewArbitrageMetrics("", nil)
	b := NewArbitrageMetrics("", nil)
	a.Opportunities.Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.Opportunities))
}

type fakeAttempts struct {
	recent  []*types.ExecutionOutcome
	unknown []*types.ExecutionOutcome
}

func (f fakeAttempts) Recent() []*types.ExecutionOutcome  { return f.recent }
func (f fakeAttempts) Unknown() []*types.ExecutionOutcome { return f.unknown }

func TestServer(t *testing.T) {
	reg := NewRegistry()
	m := NewArbitrageMetrics("arbbot", reg)
	m.Cycles.Add(3)

	attempts := fakeAttempts{
		recent: []*types.ExecutionOutcome{
			{AttemptID: "a1", State: "Verified", Succeeded: true},
			{AttemptID: "a2", State: "TimedOut", Unknown: true},
		},
		unknown: []*types.ExecutionOutcome{
			{AttemptID: "a2", State: "TimedOut", Unknown: true},
		},
	}
	srv, err := NewServer("127.0.0.1:0", reg, attempts, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	t.Run("Metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "arbbot_cycles_total 3"))
		assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
	})

	t.Run("UnknownAttempts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attempts", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var out []types.ExecutionOutcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "a2", out[0].AttemptID)
		assert.True(t, out[0].Unknown)
	})

	t.Run("AllAttempts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attempts?all=true", nil))

		var out []types.ExecutionOutcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Len(t, out, 2)
	})

	t.Run("NoHistory", func(t *testing.T) {
		bare, err := NewServer("127.0.0.1:0", reg, nil, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer bare.Close()
		rec := httptest.NewRecorder()
		bare.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attempts", nil))
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})
}

func TestServerLifecycle(t *testing.T) {
	reg := NewRegistry()

	t.Run("AddressInUse", func(t *testing.T) {
		taken, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer taken.Close()

		_, err = NewServer(taken.Addr().String(), reg, nil, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to bind metrics address")
	})

	t.Run("ServeUntilCancelled", func(t *testing.T) {
		srv, err := NewServer("127.0.0.1:0", reg, nil, zaptest.NewLogger(t))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx) }()

		// The listener is bound before Serve, so the first request cannot race it.
		resp, err := http.Get("http://" + srv.Addr() + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
		assert.NoError(t, srv.Close())
	})

	t.Run("CloseWithoutServe", func(t *testing.T) {
		srv, err := NewServer("127.0.0.1:0", reg, nil, zaptest.NewLogger(t))
		require.NoError(t, err)
		addr := srv.Addr()
		require.NoError(t, srv.Close())

		again, err := net.Listen("tcp", addr)
		require.NoError(t, err)
		again.Close()
	})
}
