package arbitrage

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/types"
	bmath "github.com/michaelpento.lv/arbbot/utils/math"
)

// CostEstimator prices executing a path in units of the path's base token.
type CostEstimator interface {
	EstimateCost(ctx context.Context, path types.SwapPath) (*big.Int, error)
}

// Detector evaluates a path, prices it and applies the gate.
type Detector struct {
	evaluator *Evaluator
	gate      *Gate
	costs     CostEstimator
	now       func() time.Time
	logger    *zap.Logger
}

// NewDetector creates a detector. costs may be nil, in which case the gate
// sees a zero execution cost.
func NewDetector(evaluator *Evaluator, gate *Gate, costs CostEstimator, logger *zap.Logger) *Detector {
	return &Detector{
		evaluator: evaluator,
		gate:      gate,
		costs:     costs,
		now:       time.Now,
		logger:    logger.Named("detector"),
	}
}

// Detect runs one path. It returns an opportunity record whether or not the
// path is profitable; an error means the path could not be evaluated.
func (d *Detector) Detect(ctx context.Context, path types.SwapPath, cycle uint64) (*types.ArbitrageOpportunity, error) {
	eval, err := d.evaluator.Evaluate(ctx, path, path.AmountIn)
	if err != nil {
		return nil, err
	}

	var cost *big.Int
	if d.costs != nil {
		cost, err = d.costs.EstimateCost(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate execution cost: %w", err)
		}
	}

	decision, err := d.gate.Decide(eval.AmountIn, eval.AmountOut, cost)
	if err != nil {
		return nil, fmt.Errorf("failed to apply profitability gate: %w", err)
	}
	if cost == nil {
		cost = new(big.Int)
	}

	base := path.Base()
	d.logger.Debug("Path evaluated",
		zap.String("path", path.Name),
		zap.String("amount_in", bmath.FormatUnits(eval.AmountIn, base.Decimals)),
		zap.String("amount_out", bmath.FormatUnits(eval.AmountOut, base.Decimals)),
		zap.String("cost", bmath.FormatUnits(cost, base.Decimals)),
		zap.Float64("profit_percent", decision.Display),
		zap.Bool("execute", decision.Execute))

	return &types.ArbitrageOpportunity{
		ID:             fmt.Sprintf("%s-%d", path.Key(), cycle),
		Path:           path,
		AmountIn:       eval.AmountIn,
		AmountOut:      eval.AmountOut,
		EstimatedCost:  cost,
		ProfitAbsolute: decision.ProfitAbsolute,
		ProfitPercent:  decision.Display,
		Profitable:     decision.Execute,
		Quotes:         eval.Quotes,
		DetectedAt:     d.now(),
	}, nil
}
