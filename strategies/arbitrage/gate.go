package arbitrage

import (
	"fmt"
	"math/big"

	bmath "github.com/michaelpento.lv/arbbot/utils/math"
)

// Decision is the gate's verdict for one evaluated path.
type Decision struct {
	ProfitAbsolute *big.Int
	ProfitPercent  *big.Rat
	// Display is ProfitPercent as a float for logs and metrics.
	Display float64
	Execute bool
}

// Gate decides whether an evaluated path is worth executing.
type Gate struct {
	threshold *big.Rat
}

// NewGate parses a minimum profit percent such as "0.5".
func NewGate(minProfitPercent string) (*Gate, error) {
	threshold, err := bmath.ParseRat(minProfitPercent)
	if err != nil {
		return nil, fmt.Errorf("invalid min profit percent: %w", err)
	}
	return &Gate{threshold: threshold}, nil
}

// Threshold returns the configured minimum profit percent.
func (g *Gate) Threshold() *big.Rat {
	return new(big.Rat).Set(g.threshold)
}

// Decide applies the gate to a path result.
func (g *Gate) Decide(amountIn, amountOut, estimatedCost *big.Int) (Decision, error) {
	return Decide(amountIn, amountOut, estimatedCost, g.threshold)
}

// Decide computes profit net of cost and executes only when the percent is
// strictly above threshold and the absolute profit is positive. A nil cost
// counts as zero.
func Decide(amountIn, amountOut, estimatedCost *big.Int, threshold *big.Rat) (Decision, error) {
	if amountOut == nil {
		return Decision{}, fmt.Errorf("amount out is required")
	}
	cost := estimatedCost
	if cost == nil {
		cost = new(big.Int)
	}

	profit := new(big.Int).Sub(amountOut, amountIn)
	profit.Sub(profit, cost)

	pct, err := bmath.ProfitPercent(profit, amountIn)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		ProfitAbsolute: profit,
		ProfitPercent:  pct,
		Display:        bmath.RatToFloat(pct),
		Execute:        profit.Sign() > 0 && pct.Cmp(threshold) > 0,
	}, nil
}
