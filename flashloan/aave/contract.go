package aave

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/michaelpento.lv/arbbot/flashloan"
	"github.com/michaelpento.lv/arbbot/types"
)

// ArbitrageFlashLoanABI is the subset of the ArbitrageFlashLoan contract the
// bot calls. The contract borrows tokenBorrow from the Aave pool, swaps it
// into intermediateToken and back, repays the loan and emits Arbitrage.
const ArbitrageFlashLoanABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "tokenBorrow", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "address", "name": "intermediateToken", "type": "address"}
		],
		"name": "executeArbitrage",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "address", "name": "tokenBorrow", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "profit", "type": "uint256"}
		],
		"name": "Arbitrage",
		"type": "event"
	}
]`

var contractABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ArbitrageFlashLoanABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ArbitrageFlashLoan ABI: %v", err))
	}
	return parsed
}()

// packExecute encodes executeArbitrage for req. The contract takes exactly
// one intermediate token.
func packExecute(req flashloan.Request) ([]byte, error) {
	if len(req.Intermediates) != 1 {
		return nil, fmt.Errorf("%w: path %q has %d intermediate tokens", ErrUnsupportedPath, req.Path.Name, len(req.Intermediates))
	}
	borrow, err := hexAddress(req.BorrowToken)
	if err != nil {
		return nil, err
	}
	mid, err := hexAddress(req.Intermediates[0])
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack("executeArbitrage", borrow, req.Amount, mid)
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeArbitrage: %w", err)
	}
	return data, nil
}

func hexAddress(t types.Token) (common.Address, error) {
	if !common.IsHexAddress(t.Address) {
		return common.Address{}, fmt.Errorf("token %s has non-EVM address %q", t.Symbol, t.Address)
	}
	return common.HexToAddress(t.Address), nil
}

// decodeEvents extracts Arbitrage events emitted by contract from logs.
// Logs from other addresses or with other signatures are skipped.
func decodeEvents(contract common.Address, logs []*ethtypes.Log) ([]types.Event, error) {
	ev := contractABI.Events[flashloan.ArbitrageEventName]

	var events []types.Event
	for _, l := range logs {
		if l.Address != contract || len(l.Topics) == 0 || l.Topics[0] != ev.ID {
			continue
		}

		fields := make(map[string]interface{})
		if err := ev.Inputs.NonIndexed().UnpackIntoMap(fields, l.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack %s log: %w", ev.Name, err)
		}
		var indexed abi.Arguments
		for _, arg := range ev.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		if len(indexed) > 0 {
			if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
				return nil, fmt.Errorf("failed to parse %s topics: %w", ev.Name, err)
			}
		}

		token, _ := fields["tokenBorrow"].(common.Address)
		amount, _ := fields["amount"].(*big.Int)
		profit, _ := fields["profit"].(*big.Int)
		events = append(events, types.Event{
			Name:   ev.Name,
			Token:  token.Hex(),
			Amount: amount,
			Profit: profit,
		})
	}
	return events, nil
}
