package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"
)

// Contract addresses
var (
	MainnetRouter  = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	MainnetFactory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	WETHAddress    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	// MainnetInitCodeHash is the pair creation code hash used by the factory.
	MainnetInitCodeHash = common.FromHex("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
)

// RouterQuoter quotes a single hop through a V2-style router's getAmountsOut.
// Any fork exposing the same router ABI is served by this type.
type RouterQuoter struct {
	id       string
	router   common.Address
	contract *bind.BoundContract
}

// NewRouterQuoter binds the router at address under the venue id.
func NewRouterQuoter(id string, router common.Address, caller Caller) *RouterQuoter {
	return &RouterQuoter{
		id:       id,
		router:   router,
		contract: bind.NewBoundContract(router, routerABI, caller, nil, nil),
	}
}

func (r *RouterQuoter) ID() string {
	return r.id
}

// GetRouterAddress returns the router contract address
func (r *RouterQuoter) GetRouterAddress() common.Address {
	return r.router
}

func (r *RouterQuoter) Quote(ctx context.Context, in, out types.Token, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, dex.Unavailable(r.id, fmt.Errorf("non-positive amount in"))
	}
	path := []common.Address{common.HexToAddress(in.Address), common.HexToAddress(out.Address)}

	var res []interface{}
	err := r.contract.Call(&bind.CallOpts{Context: ctx}, &res, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, classify(r.id, fmt.Errorf("failed to get amounts out: %w", err))
	}
	if len(res) == 0 {
		return nil, dex.Unreachable(r.id, fmt.Errorf("empty getAmountsOut result"))
	}

	amounts, ok := res[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, dex.Unreachable(r.id, fmt.Errorf("failed to parse amounts"))
	}
	amountOut := amounts[len(amounts)-1]
	if amountOut.Sign() <= 0 {
		return nil, dex.Unavailable(r.id, fmt.Errorf("zero output for %s -> %s", in.Symbol, out.Symbol))
	}
	return amountOut, nil
}
