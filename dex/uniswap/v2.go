package uniswap

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"
)

// DefaultFeeBps is the V2 swap fee.
const DefaultFeeBps = 30

// PairQuoter quotes a hop from the pair's on-chain reserves using the
// constant product formula, one eth_call per hop.
type PairQuoter struct {
	id       string
	caller   Caller
	factory  common.Address
	initCode []byte
	feeBps   uint64

	mu    sync.Mutex
	pairs map[common.Address]*UniswapV2Pair
}

// NewPairQuoter creates a reserves based quoter for the factory's pairs
func NewPairQuoter(id string, caller Caller, factory common.Address, initCodeHash []byte, feeBps uint64) *PairQuoter {
	return &PairQuoter{
		id:       id,
		caller:   caller,
		factory:  factory,
		initCode: initCodeHash,
		feeBps:   feeBps,
		pairs:    make(map[common.Address]*UniswapV2Pair),
	}
}

func (u *PairQuoter) ID() string {
	return u.id
}

func (u *PairQuoter) Quote(ctx context.Context, in, out types.Token, amountIn *big.Int) (*big.Int, error) {
	tokenIn := common.HexToAddress(in.Address)
	tokenOut := common.HexToAddress(out.Address)
	if tokenIn == tokenOut {
		return nil, dex.Unavailable(u.id, fmt.Errorf("identical tokens"))
	}

	pair := u.getPair(u.PairFor(tokenIn, tokenOut))
	reserve0, reserve1, err := pair.GetReserves(ctx)
	if err != nil {
		return nil, classify(u.id, err)
	}

	reserveIn, reserveOut := reserve0, reserve1
	if !sortsBefore(tokenIn, tokenOut) {
		reserveIn, reserveOut = reserve1, reserve0
	}

	amountOut := GetAmountOut(amountIn, reserveIn, reserveOut, u.feeBps)
	if amountOut.Sign() <= 0 {
		return nil, dex.Unavailable(u.id, fmt.Errorf("insufficient liquidity"))
	}
	return amountOut, nil
}

// getPair returns the pair binding, creating it on first use. Only the
// binding is kept; reserves are read on every quote.
func (u *PairQuoter) getPair(addr common.Address) *UniswapV2Pair {
	u.mu.Lock()
	defer u.mu.Unlock()

	if pair, ok := u.pairs[addr]; ok {
		return pair
	}
	pair := NewUniswapV2Pair(addr, u.caller)
	u.pairs[addr] = pair
	return pair
}

// PairFor calculates the CREATE2 pair address for two tokens
func (u *PairQuoter) PairFor(token0, token1 common.Address) common.Address {
	if !sortsBefore(token0, token1) {
		token0, token1 = token1, token0
	}

	salt := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(crypto.Keccak256([]byte{
		0xff,
	}, u.factory.Bytes(), salt, u.initCode)[12:])
}

func sortsBefore(a, b common.Address) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}
