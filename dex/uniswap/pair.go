package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// UniswapV2Pair represents a Uniswap V2 pair contract
type UniswapV2Pair struct {
	contract *bind.BoundContract
	address  common.Address
}

// NewUniswapV2Pair creates a new UniswapV2Pair instance
func NewUniswapV2Pair(address common.Address, caller Caller) *UniswapV2Pair {
	return &UniswapV2Pair{
		contract: bind.NewBoundContract(address, pairABI, caller, nil, nil),
		address:  address,
	}
}

// GetReserves returns the current reserves of the pair, ordered by token0/token1
func (p *UniswapV2Pair) GetReserves(ctx context.Context) (reserve0 *big.Int, reserve1 *big.Int, err error) {
	var out []interface{}
	err = p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get reserves: %w", err)
	}
	if len(out) < 2 {
		return nil, nil, fmt.Errorf("failed to parse reserves")
	}

	reserve0, ok := out[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve0")
	}
	reserve1, ok = out[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve1")
	}

	return reserve0, reserve1, nil
}

// GetAmountOut calculates the constant product output for amountIn with a
// swap fee in basis points. 30 bps reproduces the 997/1000 router math.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint64) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || feeBps >= 10000 {
		return big.NewInt(0)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, new(big.Int).SetUint64(10000-feeBps))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(new(big.Int).Mul(reserveIn, big.NewInt(10000)), amountInWithFee)

	return new(big.Int).Div(numerator, denominator)
}
