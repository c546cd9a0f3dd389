package flashloan

import (
	"context"
	"math/big"
	"time"

	"github.com/michaelpento.lv/arbbot/types"
)

// ExecutionTarget settles an arbitrage atomically: one request covers the
// whole path, borrowing the base token and repaying it within the same
// transaction.
type ExecutionTarget interface {
	// Name identifies the target in logs and metrics.
	Name() string

	// EstimateCost returns the raw execution cost in the target's native
	// cost unit (gas for EVM, compute units for Solana).
	EstimateCost(ctx context.Context, req Request) (*big.Int, error)

	// Submit sends the request with budget as its cost ceiling.
	Submit(ctx context.Context, req Request, budget *big.Int) (Handle, error)

	// AwaitSettlement blocks until the submission lands or timeout elapses.
	// A timeout returns ErrSettlementTimeout.
	AwaitSettlement(ctx context.Context, h Handle, timeout time.Duration) (*Settlement, error)
}

// Request is what a target needs to settle one opportunity.
type Request struct {
	OpportunityID string
	Path          types.SwapPath
	BorrowToken   types.Token
	Amount        *big.Int
	Intermediates []types.Token
	ExpectedOut   *big.Int
}

// NewRequest derives a settlement request from an opportunity.
func NewRequest(opp *types.ArbitrageOpportunity) Request {
	return Request{
		OpportunityID: opp.ID,
		Path:          opp.Path,
		BorrowToken:   opp.Path.Base(),
		Amount:        new(big.Int).Set(opp.AmountIn),
		Intermediates: opp.Path.Intermediates(),
		ExpectedOut:   new(big.Int).Set(opp.AmountOut),
	}
}

// Handle references a submitted transaction.
type Handle struct {
	// ID is the transaction hash or signature.
	ID          string
	Private     bool
	SubmittedAt time.Time
}

// Settlement is the confirmed result of a submission.
type Settlement struct {
	Settled bool
	Events  []types.Event
	// Ref is the block number or slot the transaction landed in.
	Ref      string
	CostUsed *big.Int
}
