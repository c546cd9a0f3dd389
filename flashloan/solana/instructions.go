package solana

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"regexp"

	sol "github.com/gagliardetto/solana-go"

	"github.com/michaelpento.lv/arbbot/flashloan"
	"github.com/michaelpento.lv/arbbot/types"
)

// ComputeBudgetProgramID is the native compute budget program.
var ComputeBudgetProgramID = sol.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	// ArbitrageInstruction::ExecuteArbitrage variant index.
	ixExecuteArbitrage = 1

	// ComputeBudgetInstruction::SetComputeUnitLimit.
	ixSetComputeUnitLimit = 2

	// MaxComputeUnits is the per-transaction compute ceiling.
	MaxComputeUnits = 1_400_000
)

// executeArbitrageData is the borsh encoding of
// ArbitrageInstruction::ExecuteArbitrage { amount }.
func executeArbitrageData(amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = ixExecuteArbitrage
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

func setComputeUnitLimitData(units uint32) []byte {
	data := make([]byte, 5)
	data[0] = ixSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return data
}

// Accounts are the fixed accounts of ExecuteArbitrage.
type Accounts struct {
	Program     sol.PublicKey
	State       sol.PublicKey
	Source      sol.PublicKey
	Destination sol.PublicKey
}

func (a Accounts) executeArbitrage(authority sol.PublicKey, amount uint64) sol.Instruction {
	return sol.NewInstruction(
		a.Program,
		sol.AccountMetaSlice{
			{PublicKey: authority, IsSigner: true, IsWritable: false},
			{PublicKey: a.State, IsSigner: false, IsWritable: true},
			{PublicKey: a.Source, IsSigner: false, IsWritable: true},
			{PublicKey: a.Destination, IsSigner: false, IsWritable: true},
			{PublicKey: sol.TokenProgramID, IsSigner: false, IsWritable: false},
		},
		executeArbitrageData(amount),
	)
}

func setComputeUnitLimit(units uint32) sol.Instruction {
	return sol.NewInstruction(ComputeBudgetProgramID, sol.AccountMetaSlice{}, setComputeUnitLimitData(units))
}

var executedLog = regexp.MustCompile(`Arbitrage operation executed: (\d+) tokens`)

// parseEvents turns the program's completion log lines into Arbitrage events.
// The program does not log the mint, so Token is left empty.
func parseEvents(logs []string) []types.Event {
	var events []types.Event
	for _, line := range logs {
		m := executedLog.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		amount, ok := new(big.Int).SetString(m[1], 10)
		if !ok {
			continue
		}
		events = append(events, types.Event{Name: flashloan.ArbitrageEventName, Amount: amount})
	}
	return events
}

func amountU64(amount *big.Int) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 || !amount.IsUint64() {
		return 0, fmt.Errorf("amount %v does not fit in u64", amount)
	}
	return amount.Uint64(), nil
}
