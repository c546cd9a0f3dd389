package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Backend is the part of an Ethereum client needed to dry-run a call.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// SimulationResult represents the result of a transaction simulation
type SimulationResult struct {
	Success      bool
	GasUsed      uint64
	RevertReason string
	Error        error
}

// Simulator dry-runs calls against the latest state before they are signed.
type Simulator struct {
	client Backend
	logger *zap.Logger
}

// NewSimulator creates a new transaction simulator
func NewSimulator(client Backend, logger *zap.Logger) *Simulator {
	return &Simulator{
		client: client,
		logger: logger.Named("simulator"),
	}
}

// Simulate executes msg with eth_call and, if it does not revert, estimates
// its gas. A revert is reported in the result; only transport failures are
// returned as errors.
func (s *Simulator) Simulate(ctx context.Context, msg ethereum.CallMsg) (*SimulationResult, error) {
	if _, err := s.client.CallContract(ctx, msg, nil); err != nil {
		if reason, ok := revertReason(err); ok {
			s.logger.Debug("Call reverted in preflight", zap.String("reason", reason))
			return &SimulationResult{Success: false, RevertReason: reason, Error: err}, nil
		}
		return nil, fmt.Errorf("failed to execute preflight call: %w", err)
	}

	gasUsed, err := s.client.EstimateGas(ctx, msg)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return &SimulationResult{Success: false, RevertReason: reason, Error: err}, nil
		}
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	return &SimulationResult{
		Success: true,
		GasUsed: gasUsed,
	}, nil
}

// revertReason reports whether err is an EVM revert and extracts its
// Error(string) message when one is attached.
func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(s); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
		return dataErr.Error(), true
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return err.Error(), true
	}
	return "", false
}
