// Package jupiter quotes Solana swaps through the Jupiter aggregator API.
package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"
)

const (
	// DefaultBaseURL is the Jupiter Lite API endpoint.
	DefaultBaseURL = "https://lite-api.jup.ag/swap/v1"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultSlippageBps matches the 0.5% tolerance used for route discovery.
	DefaultSlippageBps = 50

	// DefaultMaxTries bounds retries of transient failures per quote.
	DefaultMaxTries = 3

	DefaultRetryInterval = 500 * time.Millisecond

	SwapModeExactIn = "ExactIn"
)

// Config contains configuration for the Jupiter quoter.
type Config struct {
	ID            string
	BaseURL       string
	APIKey        string
	SlippageBps   int
	MaxTries      uint
	RetryInterval time.Duration
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Quoter is a dex.Quoter backed by the Jupiter quote endpoint.
type Quoter struct {
	id            string
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	slippageBps   int
	maxTries      uint
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewQuoter creates a Jupiter quoter.
func NewQuoter(cfg Config, logger *zap.Logger) *Quoter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SlippageBps == 0 {
		cfg.SlippageBps = DefaultSlippageBps
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = DefaultMaxTries
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.ID == "" {
		cfg.ID = "jupiter"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Quoter{
		id:            cfg.ID,
		httpClient:    httpClient,
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		slippageBps:   cfg.SlippageBps,
		maxTries:      cfg.MaxTries,
		retryInterval: cfg.RetryInterval,
		logger:        logger.Named("jupiter"),
	}
}

func (q *Quoter) ID() string {
	return q.id
}

// Quote returns the best route output for amountIn. Transient failures are
// retried with exponential backoff; a missing route is returned at once.
func (q *Quoter) Quote(ctx context.Context, in, out types.Token, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 || !amountIn.IsUint64() {
		return nil, dex.Unavailable(q.id, fmt.Errorf("amount %v out of u64 range", amountIn))
	}

	params := &QuoteParams{
		InputMint:   in.Address,
		OutputMint:  out.Address,
		Amount:      amountIn.String(),
		SlippageBps: q.slippageBps,
		SwapMode:    SwapModeExactIn,
	}

	notify := func(err error, d time.Duration) {
		q.logger.Debug("Retrying quote",
			zap.String("pair", in.Symbol+"/"+out.Symbol),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = q.retryInterval
	policy.MaxInterval = q.retryInterval * 10

	resp, err := backoff.Retry(ctx, func() (*QuoteResponse, error) {
		resp, err := q.GetQuote(ctx, params)
		if err != nil && !errors.Is(err, dex.ErrVenueUnreachable) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(q.maxTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if !errors.Is(err, dex.ErrQuoteUnavailable) && !errors.Is(err, dex.ErrVenueUnreachable) {
			return nil, dex.Unreachable(q.id, err)
		}
		return nil, err
	}

	if len(resp.RoutePlan) == 0 {
		return nil, dex.Unavailable(q.id, fmt.Errorf("no route for %s -> %s", in.Symbol, out.Symbol))
	}
	amountOut, ok := new(big.Int).SetString(resp.OutAmount, 10)
	if !ok {
		return nil, dex.Unreachable(q.id, fmt.Errorf("invalid outAmount %q", resp.OutAmount))
	}
	if amountOut.Sign() <= 0 {
		return nil, dex.Unavailable(q.id, fmt.Errorf("zero output for %s -> %s", in.Symbol, out.Symbol))
	}
	return amountOut, nil
}

// GetQuote fetches a swap quote from Jupiter. Errors are classified: 5xx, 429
// and transport failures are unreachable, other 4xx mean no route.
func (q *Quoter) GetQuote(ctx context.Context, params *QuoteParams) (*QuoteResponse, error) {
	if params.InputMint == "" || params.OutputMint == "" {
		return nil, dex.Unavailable(q.id, fmt.Errorf("inputMint and outputMint are required"))
	}

	query := url.Values{}
	query.Set("inputMint", params.InputMint)
	query.Set("outputMint", params.OutputMint)
	query.Set("amount", params.Amount)
	if params.SlippageBps > 0 {
		query.Set("slippageBps", strconv.Itoa(params.SlippageBps))
	}
	if params.SwapMode != "" {
		query.Set("swapMode", params.SwapMode)
	}
	if params.OnlyDirectRoutes {
		query.Set("onlyDirectRoutes", "true")
	}

	requestURL := fmt.Sprintf("%s/quote?%s", q.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if q.apiKey != "" {
		req.Header.Set("x-api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, dex.Unreachable(q.id, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dex.Unreachable(q.id, fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, dex.Unreachable(q.id, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	default:
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		return nil, dex.Unavailable(q.id, fmt.Errorf("status %d: %s %s", resp.StatusCode, apiErr.ErrorCode, apiErr.Error))
	}

	var quote QuoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, dex.Unreachable(q.id, fmt.Errorf("failed to parse response: %w", err))
	}
	return &quote, nil
}
