package uniswap

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/michaelpento.lv/arbbot/dex"
)

// Caller is the read-only part of a node client the quoters need.
// *ethclient.Client satisfies it.
type Caller = bind.ContractCaller

// Router contract ABI, view methods only
const routerABIJson = `[{
	"inputs": [
		{"name": "amountIn", "type": "uint256"},
		{"name": "path", "type": "address[]"}
	],
	"name": "getAmountsOut",
	"outputs": [{"name": "amounts", "type": "uint256[]"}],
	"stateMutability": "view",
	"type": "function"
}]`

// Pair contract ABI
const pairABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

var (
	routerABI = mustParseABI(routerABIJson)
	pairABI   = mustParseABI(pairABIJson)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// classify sorts a contract call error into the quote taxonomy. A revert or
// a missing contract means the venue has no route; anything else is treated
// as transport trouble.
func classify(venue string, err error) error {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) ||
		errors.Is(err, bind.ErrNoCode) ||
		strings.Contains(err.Error(), "execution reverted") {
		return dex.Unavailable(venue, err)
	}
	return dex.Unreachable(venue, err)
}
