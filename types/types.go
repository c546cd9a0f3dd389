package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Token is a configured asset. Address holds a hex address on EVM chains and a
// base58 mint on Solana.
type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

func (t Token) String() string {
	return t.Symbol
}

// Equal compares tokens by address, case-insensitively for hex addresses.
func (t Token) Equal(o Token) bool {
	return strings.EqualFold(t.Address, o.Address)
}

// Hop is one venue-mediated conversion inside a path.
type Hop struct {
	From    Token
	To      Token
	VenueID string
}

// SwapPath is a round-trip route. Tokens[0] and Tokens[len-1] are the same
// asset and Venues[i] quotes the conversion Tokens[i] -> Tokens[i+1].
type SwapPath struct {
	Name     string
	Tokens   []Token
	Venues   []string
	AmountIn *big.Int
}

// Validate checks the structural rules of a path.
func (p SwapPath) Validate() error {
	if len(p.Tokens) < 2 {
		return fmt.Errorf("path %q needs at least 2 tokens", p.Name)
	}
	if !p.Tokens[0].Equal(p.Tokens[len(p.Tokens)-1]) {
		return fmt.Errorf("path %q must start and end with the same token", p.Name)
	}
	if len(p.Venues) != len(p.Tokens)-1 {
		return fmt.Errorf("path %q has %d hops but %d venues", p.Name, len(p.Tokens)-1, len(p.Venues))
	}
	for i, v := range p.Venues {
		if v == "" {
			return fmt.Errorf("path %q hop %d has no venue", p.Name, i)
		}
	}
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return fmt.Errorf("path %q amount in must be positive", p.Name)
	}
	return nil
}

// Hops expands the path into its ordered hops.
func (p SwapPath) Hops() []Hop {
	hops := make([]Hop, 0, len(p.Venues))
	for i, v := range p.Venues {
		hops = append(hops, Hop{From: p.Tokens[i], To: p.Tokens[i+1], VenueID: v})
	}
	return hops
}

// Base returns the token the path starts and ends with.
func (p SwapPath) Base() Token {
	return p.Tokens[0]
}

// Intermediates returns the tokens strictly between the two ends.
func (p SwapPath) Intermediates() []Token {
	if len(p.Tokens) <= 2 {
		return nil
	}
	return p.Tokens[1 : len(p.Tokens)-1]
}

// Key is a stable fingerprint of the token and venue sequence.
func (p SwapPath) Key() string {
	d := xxhash.New()
	for i, t := range p.Tokens {
		_, _ = d.WriteString(strings.ToLower(t.Address))
		_, _ = d.WriteString("|")
		if i < len(p.Venues) {
			_, _ = d.WriteString(p.Venues[i])
		}
		_, _ = d.WriteString(";")
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], d.Sum64())
	return hex.EncodeToString(b[:])
}

// Label is a human readable rendering such as WETH -> USDC -> WETH.
func (p SwapPath) Label() string {
	parts := make([]string, len(p.Tokens))
	for i, t := range p.Tokens {
		parts[i] = t.Symbol
	}
	return strings.Join(parts, " -> ")
}

// VenueQuote is a single fresh quote. It is never reused across cycles.
type VenueQuote struct {
	InputToken  Token
	OutputToken Token
	AmountIn    *big.Int
	AmountOut   *big.Int
	VenueID     string
}

// ArbitrageOpportunity is the evaluated result of one path in one cycle.
type ArbitrageOpportunity struct {
	ID             string
	Path           SwapPath
	AmountIn       *big.Int
	AmountOut      *big.Int
	EstimatedCost  *big.Int
	ProfitAbsolute *big.Int
	// ProfitPercent is for display only; decisions use exact arithmetic.
	ProfitPercent float64
	Profitable    bool
	Quotes        []VenueQuote
	DetectedAt    time.Time
}

// Event is a decoded settlement record, e.g. the contract's Arbitrage event.
type Event struct {
	Name   string   `json:"name"`
	Token  string   `json:"token"`
	Amount *big.Int `json:"amount"`
	Profit *big.Int `json:"profit,omitempty"`
}

// ExecutionOutcome is the normalized record of a terminal execution attempt.
type ExecutionOutcome struct {
	AttemptID     string        `json:"attempt_id"`
	OpportunityID string        `json:"opportunity_id"`
	PathName      string        `json:"path"`
	State         string        `json:"state"`
	Succeeded     bool          `json:"succeeded"`
	Unknown       bool          `json:"unknown"`
	Reason        string        `json:"reason,omitempty"`
	RawCost       *big.Int      `json:"raw_cost,omitempty"`
	Budget        *big.Int      `json:"budget,omitempty"`
	Handle        string        `json:"handle,omitempty"`
	Events        []Event       `json:"events,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

// PathResult is one path's line in a cycle report.
type PathResult struct {
	PathName    string                `json:"path"`
	PathKey     string                `json:"path_key"`
	Opportunity *ArbitrageOpportunity `json:"-"`
	Found       bool                  `json:"found"`
	ProfitPct   float64               `json:"profit_percent"`
	Err         string                `json:"error,omitempty"`
	ErrKind     string                `json:"error_kind,omitempty"`
	Execution   *ExecutionOutcome     `json:"execution,omitempty"`
}

// CycleReport is the per-cycle result feed.
type CycleReport struct {
	Cycle      uint64       `json:"cycle"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []PathResult `json:"results"`
}

// Opportunities counts paths that passed the gate.
func (r *CycleReport) Opportunities() int {
	n := 0
	for _, res := range r.Results {
		if res.Found {
			n++
		}
	}
	return n
}
