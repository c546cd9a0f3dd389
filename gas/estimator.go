package gas

import (
	"context"
	"fmt"
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/types"
)

// Backend is the fee-market subset of an Ethereum client.
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

const (
	// Base cost for a transaction.
	txBaseGas = uint64(21000)
	// Cost per DEX hop: storage reads (~2000), token transfers (~50000) and
	// swap execution (~100000).
	hopGas = uint64(152000)
)

// Estimator prices gas. Prices are fetched on demand; nothing is cached.
type Estimator struct {
	client Backend
	fixed  *big.Int
	max    *big.Int
	logger *zap.Logger
}

// NewEstimator creates a gas estimator. A non-nil fixed price is always used
// as is; otherwise the price is base fee plus suggested tip. A non-nil max
// caps the result.
func NewEstimator(client Backend, fixed, max *big.Int, logger *zap.Logger) *Estimator {
	return &Estimator{
		client: client,
		fixed:  fixed,
		max:    max,
		logger: logger.Named("gas"),
	}
}

// GasPrice returns the price to bid per unit of gas in wei.
func (e *Estimator) GasPrice(ctx context.Context) (*big.Int, error) {
	if e.fixed != nil {
		return e.capped(new(big.Int).Set(e.fixed)), nil
	}

	head, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	var price *big.Int
	if head.BaseFee == nil {
		// Pre-London chains have no base fee.
		price, err = e.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	} else {
		tip, err := e.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get priority fee: %w", err)
		}
		price = new(big.Int).Add(head.BaseFee, tip)
	}
	return e.capped(price), nil
}

func (e *Estimator) capped(price *big.Int) *big.Int {
	if e.max != nil && price.Cmp(e.max) > 0 {
		e.logger.Warn("Gas price above cap",
			zap.String("price", price.String()),
			zap.String("cap", e.max.String()))
		return new(big.Int).Set(e.max)
	}
	return price
}

// EstimateGasCost estimates the wei cost of gasLimit units at the current price.
func (e *Estimator) EstimateGasCost(ctx context.Context, gasLimit uint64) (*big.Int, error) {
	price, err := e.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit)), nil
}

// EstimateArbitrageGas estimates gas for a typical arbitrage transaction
func (e *Estimator) EstimateArbitrageGas(numHops int) uint64 {
	if numHops < 0 {
		numHops = 0
	}
	return txBaseGas + hopGas*uint64(numHops)
}

// EstimateCost prices executing path in wei. The result is only meaningful
// as a gate cost when the path's base token is the wrapped native token.
func (e *Estimator) EstimateCost(ctx context.Context, path types.SwapPath) (*big.Int, error) {
	return e.EstimateGasCost(ctx, e.EstimateArbitrageGas(len(path.Venues)))
}
