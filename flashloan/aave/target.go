package aave

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/flashloan"
	"github.com/michaelpento.lv/arbbot/simulator"
)

var (
	// ErrUnsupportedPath means the contract cannot express the path.
	ErrUnsupportedPath = errors.New("path not supported by contract")
	// ErrPreflightReverted means eth_call of the arbitrage reverted.
	ErrPreflightReverted = errors.New("preflight reverted")
)

const DefaultPollInterval = 2 * time.Second

// Backend is the part of *ethclient.Client the target needs.
type Backend interface {
	simulator.Backend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Sender broadcasts a signed transaction. *flashbots.Client implements it.
type Sender interface {
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// Canceller withdraws a private transaction that did not land in time.
type Canceller interface {
	CancelPrivateTransaction(ctx context.Context, txHash common.Hash) (bool, error)
}

// GasPricer returns the gas price to bid. *gas.Estimator implements it.
type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Config holds the contract binding.
type Config struct {
	Contract     common.Address
	ChainID      *big.Int
	PollInterval time.Duration
}

// Option customizes a Target.
type Option func(*Target)

// WithPrivateSender routes submissions through s instead of the public
// mempool.
func WithPrivateSender(s Sender) Option {
	return func(t *Target) {
		t.sender = s
		t.private = true
	}
}

// Target settles arbitrage through the ArbitrageFlashLoan contract. The
// raw cost unit is gas; the budget becomes the transaction gas limit.
type Target struct {
	client  Backend
	sim     *simulator.Simulator
	gas     GasPricer
	sender  Sender
	private bool
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  ethtypes.Signer
	cfg     Config
	logger  *zap.Logger

	nonceMu   sync.Mutex
	nextNonce *uint64
}

// NewTarget binds the contract for the account behind key.
func NewTarget(client Backend, key *ecdsa.PrivateKey, gas GasPricer, cfg Config, logger *zap.Logger, opts ...Option) (*Target, error) {
	if client == nil {
		return nil, fmt.Errorf("ethclient cannot be nil")
	}
	if key == nil {
		return nil, fmt.Errorf("signing key cannot be nil")
	}
	if cfg.ChainID == nil {
		return nil, fmt.Errorf("chain id cannot be nil")
	}
	if (cfg.Contract == common.Address{}) {
		return nil, fmt.Errorf("contract address cannot be empty")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	logger = logger.Named("evm-target")
	t := &Target{
		client: client,
		sim:    simulator.NewSimulator(client, logger),
		gas:    gas,
		sender: client,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
		signer: ethtypes.LatestSignerForChainID(cfg.ChainID),
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Target) Name() string { return "evm" }

// From returns the account submitting transactions.
func (t *Target) From() common.Address { return t.from }

// EstimateCost dry-runs executeArbitrage and returns its gas.
func (t *Target) EstimateCost(ctx context.Context, req flashloan.Request) (*big.Int, error) {
	data, err := packExecute(req)
	if err != nil {
		return nil, err
	}

	res, err := t.sim.Simulate(ctx, ethereum.CallMsg{
		From: t.from,
		To:   &t.cfg.Contract,
		Data: data,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrPreflightReverted, res.RevertReason)
	}
	return new(big.Int).SetUint64(res.GasUsed), nil
}

// Submit signs and sends executeArbitrage with budget as gas limit.
func (t *Target) Submit(ctx context.Context, req flashloan.Request, budget *big.Int) (flashloan.Handle, error) {
	if budget == nil || !budget.IsUint64() || budget.Sign() <= 0 {
		return flashloan.Handle{}, fmt.Errorf("gas budget %v out of range", budget)
	}
	data, err := packExecute(req)
	if err != nil {
		return flashloan.Handle{}, err
	}
	price, err := t.gas.GasPrice(ctx)
	if err != nil {
		return flashloan.Handle{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	// Nonce assignment and broadcast form one critical section so
	// concurrent attempts never share a nonce.
	t.nonceMu.Lock()
	defer t.nonceMu.Unlock()

	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return flashloan.Handle{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	if t.nextNonce != nil && *t.nextNonce > nonce {
		// Private transactions are not visible in the pending pool.
		nonce = *t.nextNonce
	}

	tx, err := ethtypes.SignTx(ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      budget.Uint64(),
		To:       &t.cfg.Contract,
		Value:    big.NewInt(0),
		Data:     data,
	}), t.signer, t.key)
	if err != nil {
		return flashloan.Handle{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := t.sender.SendTransaction(ctx, tx); err != nil {
		return flashloan.Handle{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	next := nonce + 1
	t.nextNonce = &next

	t.logger.Debug("Transaction sent",
		zap.String("hash", tx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", tx.Gas()),
		zap.String("gas_price", price.String()))

	return flashloan.Handle{
		ID:          tx.Hash().Hex(),
		Private:     t.private,
		SubmittedAt: time.Now(),
	}, nil
}

// AwaitSettlement polls for the receipt until it appears or timeout elapses.
func (t *Target) AwaitSettlement(ctx context.Context, h flashloan.Handle, timeout time.Duration) (*flashloan.Settlement, error) {
	hash := common.HexToHash(h.ID)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return t.settlement(receipt)
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() == nil:
			t.logger.Warn("Failed to fetch receipt", zap.String("hash", h.ID), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			t.cancelPrivate(h)
			return nil, fmt.Errorf("%w: %s after %s", flashloan.ErrSettlementTimeout, h.ID, timeout)
		case <-ticker.C:
		}
	}
}

func (t *Target) settlement(receipt *ethtypes.Receipt) (*flashloan.Settlement, error) {
	s := &flashloan.Settlement{
		Settled:  receipt.Status == ethtypes.ReceiptStatusSuccessful,
		CostUsed: new(big.Int).SetUint64(receipt.GasUsed),
	}
	if receipt.BlockNumber != nil {
		s.Ref = strconv.FormatUint(receipt.BlockNumber.Uint64(), 10)
	}
	if !s.Settled {
		return s, nil
	}

	events, err := decodeEvents(t.cfg.Contract, receipt.Logs)
	if err != nil {
		// A malformed log is treated as a missing event.
		t.logger.Warn("Failed to decode settlement logs", zap.String("hash", receipt.TxHash.Hex()), zap.Error(err))
	}
	s.Events = events
	return s, nil
}

func (t *Target) cancelPrivate(h flashloan.Handle) {
	c, ok := t.sender.(Canceller)
	if !h.Private || !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.CancelPrivateTransaction(ctx, common.HexToHash(h.ID)); err != nil {
		t.logger.Warn("Failed to cancel private transaction", zap.String("hash", h.ID), zap.Error(err))
	}
}
