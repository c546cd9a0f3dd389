package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/flashloan"
)

var (
	// ErrSimulationFailed means the program failed in simulation.
	ErrSimulationFailed = errors.New("simulation failed")
	// ErrComputeBudget means the budget exceeds the transaction ceiling.
	ErrComputeBudget = errors.New("compute budget exceeds limit")
)

const (
	DefaultPollInterval = 2 * time.Second
	blockhashMaxTries   = 3
)

// RPC is the subset of *rpc.Client the target uses.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SimulateTransaction(ctx context.Context, tx *sol.Transaction) (*rpc.SimulateTransactionResponse, error)
	SendTransactionWithOpts(ctx context.Context, tx *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...sol.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTransaction(ctx context.Context, txSig sol.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// Config binds the on-chain arbitrage program.
type Config struct {
	Accounts     Accounts
	PollInterval time.Duration
	// RetryInterval spaces blockhash fetch retries.
	RetryInterval time.Duration
}

// Target settles arbitrage through the Solana arbitrage program. The raw
// cost unit is compute units; the budget becomes the transaction's compute
// unit limit.
type Target struct {
	client    RPC
	authority sol.PrivateKey
	cfg       Config
	logger    *zap.Logger
}

// NewTarget creates a Solana target signing with authority.
func NewTarget(client RPC, authority sol.PrivateKey, cfg Config, logger *zap.Logger) (*Target, error) {
	if client == nil {
		return nil, fmt.Errorf("rpc client cannot be nil")
	}
	if len(authority) == 0 {
		return nil, fmt.Errorf("authority key cannot be empty")
	}
	if cfg.Accounts.Program.IsZero() || cfg.Accounts.State.IsZero() {
		return nil, fmt.Errorf("program and state accounts are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	return &Target{
		client:    client,
		authority: authority,
		cfg:       cfg,
		logger:    logger.Named("solana-target"),
	}, nil
}

// LoadAuthority reads a solana-keygen JSON keypair file.
func LoadAuthority(path string) (sol.PrivateKey, error) {
	key, err := sol.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return key, nil
}

func (t *Target) Name() string { return "solana" }

// EstimateCost simulates ExecuteArbitrage and returns the compute units it
// consumed.
func (t *Target) EstimateCost(ctx context.Context, req flashloan.Request) (*big.Int, error) {
	amount, err := amountU64(req.Amount)
	if err != nil {
		return nil, err
	}
	tx, err := t.buildTx(ctx, amount, MaxComputeUnits)
	if err != nil {
		return nil, err
	}

	res, err := t.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("%w: empty simulation result", ErrSimulationFailed)
	}
	if res.Value.Err != nil {
		t.logger.Debug("Simulation failed", zap.Any("err", res.Value.Err), zap.Strings("logs", res.Value.Logs))
		return nil, fmt.Errorf("%w: %v", ErrSimulationFailed, res.Value.Err)
	}
	if res.Value.UnitsConsumed == nil || *res.Value.UnitsConsumed == 0 {
		return nil, fmt.Errorf("%w: no compute units reported", ErrSimulationFailed)
	}
	return new(big.Int).SetUint64(*res.Value.UnitsConsumed), nil
}

// Submit signs and sends ExecuteArbitrage with budget as its compute limit.
func (t *Target) Submit(ctx context.Context, req flashloan.Request, budget *big.Int) (flashloan.Handle, error) {
	amount, err := amountU64(req.Amount)
	if err != nil {
		return flashloan.Handle{}, err
	}
	if budget == nil || budget.Sign() <= 0 || budget.Cmp(big.NewInt(MaxComputeUnits)) > 0 {
		return flashloan.Handle{}, fmt.Errorf("%w: %v > %d", ErrComputeBudget, budget, MaxComputeUnits)
	}

	tx, err := t.buildTx(ctx, amount, uint32(budget.Uint64()))
	if err != nil {
		return flashloan.Handle{}, err
	}

	sig, err := t.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return flashloan.Handle{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return flashloan.Handle{ID: sig.String(), SubmittedAt: time.Now()}, nil
}

// AwaitSettlement polls the signature status until it is confirmed, then
// fetches the transaction logs.
func (t *Target) AwaitSettlement(ctx context.Context, h flashloan.Handle, timeout time.Duration) (*flashloan.Settlement, error) {
	sig, err := sol.SignatureFromBase58(h.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", h.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		statuses, err := t.client.GetSignatureStatuses(ctx, false, sig)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				t.logger.Warn("Failed to fetch signature status", zap.String("signature", h.ID), zap.Error(err))
			}
		case len(statuses.Value) > 0 && statuses.Value[0] != nil:
			status := statuses.Value[0]
			if status.Err != nil {
				return &flashloan.Settlement{Settled: false, Ref: strconv.FormatUint(status.Slot, 10)}, nil
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return t.settlement(ctx, sig)
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s after %s", flashloan.ErrSettlementTimeout, h.ID, timeout)
		case <-ticker.C:
		}
	}
}

func (t *Target) settlement(ctx context.Context, sig sol.Signature) (*flashloan.Settlement, error) {
	maxVersion := uint64(0)
	res, err := t.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       sol.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", sig, err)
	}

	s := &flashloan.Settlement{Settled: true, Ref: strconv.FormatUint(res.Slot, 10)}
	if res.Meta != nil {
		if res.Meta.Err != nil {
			s.Settled = false
			return s, nil
		}
		s.Events = parseEvents(res.Meta.LogMessages)
	}
	return s, nil
}

// buildTx assembles and signs [SetComputeUnitLimit, ExecuteArbitrage].
func (t *Target) buildTx(ctx context.Context, amount uint64, units uint32) (*sol.Transaction, error) {
	blockhash, err := t.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	authority := t.authority.PublicKey()
	tx, err := sol.NewTransaction(
		[]sol.Instruction{
			setComputeUnitLimit(units),
			t.cfg.Accounts.executeArbitrage(authority, amount),
		},
		blockhash,
		sol.TransactionPayer(authority),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if authority.Equals(key) {
			return &t.authority
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

func (t *Target) latestBlockhash(ctx context.Context) (sol.Hash, error) {
	op := func() (sol.Hash, error) {
		res, err := t.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return sol.Hash{}, err
		}
		if res == nil || res.Value == nil {
			return sol.Hash{}, fmt.Errorf("empty blockhash response")
		}
		return res.Value.Blockhash, nil
	}

	hash, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(t.cfg.RetryInterval)),
		backoff.WithMaxTries(blockhashMaxTries),
	)
	if err != nil {
		return sol.Hash{}, fmt.Errorf("failed to get blockhash: %w", err)
	}
	return hash, nil
}
