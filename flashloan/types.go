package flashloan

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/michaelpento.lv/arbbot/types"
)

// AttemptState is the position of an execution attempt in its lifecycle.
type AttemptState int

const (
	StatePending AttemptState = iota
	StateCostEstimated
	StateSubmitted
	StateConfirmed
	StateVerified
	StateCostEstimationFailed
	StateSubmissionFailed
	StateReverted
	StateTimedOut
	StateEventNotFound
)

var stateNames = [...]string{
	StatePending:              "Pending",
	StateCostEstimated:        "CostEstimated",
	StateSubmitted:            "Submitted",
	StateConfirmed:            "Confirmed",
	StateVerified:             "Verified",
	StateCostEstimationFailed: "CostEstimationFailed",
	StateSubmissionFailed:     "SubmissionFailed",
	StateReverted:             "Reverted",
	StateTimedOut:             "TimedOut",
	StateEventNotFound:        "EventNotFound",
}

func (s AttemptState) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "Invalid"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s AttemptState) Terminal() bool {
	return s >= StateVerified
}

// Unknown reports whether the on-chain result is indeterminate and needs
// manual reconciliation.
func (s AttemptState) Unknown() bool {
	return s == StateTimedOut || s == StateEventNotFound
}

// AllStates lists every state in lifecycle order.
func AllStates() []AttemptState {
	out := make([]AttemptState, len(stateNames))
	for i := range stateNames {
		out[i] = AttemptState(i)
	}
	return out
}

// Stage errors. Attempt.Err wraps exactly one of these on failure.
var (
	ErrCostEstimation    = errors.New("cost estimation failed")
	ErrSubmission        = errors.New("submission failed")
	ErrReverted          = errors.New("transaction reverted")
	ErrSettlementTimeout = errors.New("settlement timed out")
	ErrEventNotFound     = errors.New("arbitrage event not found")
)

// ArbitrageEventName is the settlement event the contracts emit.
const ArbitrageEventName = "Arbitrage"

// Attempt is one execution attempt for one opportunity. It owns its budget
// and handle.
type Attempt struct {
	ID          string
	Opportunity *types.ArbitrageOpportunity
	Request     Request
	State       AttemptState
	RawCost     *big.Int
	Budget      *big.Int
	Handle      Handle
	Settlement  *Settlement
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Outcome normalizes the attempt for the result feed.
func (a *Attempt) Outcome() *types.ExecutionOutcome {
	out := &types.ExecutionOutcome{
		AttemptID:     a.ID,
		OpportunityID: a.Opportunity.ID,
		PathName:      a.Opportunity.Path.Name,
		State:         a.State.String(),
		Succeeded:     a.State == StateVerified,
		Unknown:       a.State.Unknown(),
		RawCost:       a.RawCost,
		Budget:        a.Budget,
		Handle:        a.Handle.ID,
		StartedAt:     a.StartedAt,
		Duration:      a.FinishedAt.Sub(a.StartedAt),
	}
	if a.Err != nil {
		out.Reason = a.Err.Error()
	}
	if a.Settlement != nil {
		out.Events = a.Settlement.Events
	}
	return out
}

// MatchEvent returns the first Arbitrage event for the request's borrow token
// and amount.
func MatchEvent(events []types.Event, req Request) (types.Event, bool) {
	for _, ev := range events {
		if ev.Name != ArbitrageEventName || ev.Amount == nil {
			continue
		}
		if ev.Token != "" && !strings.EqualFold(ev.Token, req.BorrowToken.Address) {
			continue
		}
		if ev.Amount.Cmp(req.Amount) == 0 {
			return ev, true
		}
	}
	return types.Event{}, false
}
