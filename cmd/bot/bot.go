// Package bot assembles the arbitrage bot from its configuration.
package bot

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/dex/uniswap"
	"github.com/michaelpento.lv/arbbot/flashbots"
	"github.com/michaelpento.lv/arbbot/flashloan"
	"github.com/michaelpento.lv/arbbot/flashloan/aave"
	"github.com/michaelpento.lv/arbbot/flashloan/solana"
	"github.com/michaelpento.lv/arbbot/gas"
	"github.com/michaelpento.lv/arbbot/reporter"
	"github.com/michaelpento.lv/arbbot/strategies/arbitrage"
	"github.com/michaelpento.lv/arbbot/types"
	bmath "github.com/michaelpento.lv/arbbot/utils/math"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
)

// Options adjust a Bot beyond its configuration.
type Options struct {
	// DryRun disables execution regardless of the configuration.
	DryRun bool
	// ServeMetrics starts the metrics server alongside the scheduler.
	ServeMetrics bool
}

// Bot represents the arbitrage bot instance
type Bot struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	scheduler *arbitrage.Scheduler
	history   *reporter.History
	server    *metrics.Server
	closers   []func()
	logger    *zap.Logger
}

// New creates a new arbitrage bot instance. Every connection the bot needs
// is opened here; Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Bot, error) {
	b := &Bot{
		cfg:      cfg,
		registry: metrics.NewRegistry(),
		logger:   logger,
	}
	if err := b.build(ctx, opts); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bot) build(ctx context.Context, opts Options) error {
	cfg := b.cfg

	var client *ethclient.Client
	if cfg.Network.Chain == config.ChainEVM {
		var err error
		client, err = ethclient.DialContext(ctx, cfg.Network.RPCEndpoint)
		if err != nil {
			return fmt.Errorf("failed to connect to Ethereum node: %w", err)
		}
		b.closers = append(b.closers, client.Close)
	}

	// A nil *ethclient.Client must not reach the quoters as a non-nil
	// interface.
	var caller uniswap.Caller
	if client != nil {
		caller = client
	}
	quoters, err := BuildQuoters(cfg, caller, b.logger)
	if err != nil {
		return err
	}
	venues, err := dex.NewRegistry(quoters...)
	if err != nil {
		return fmt.Errorf("failed to register venues: %w", err)
	}

	gate, err := arbitrage.NewGate(cfg.Trade.MinProfitPercent)
	if err != nil {
		return fmt.Errorf("invalid profit threshold: %w", err)
	}

	var estimator *gas.Estimator
	if client != nil {
		estimator, err = newGasEstimator(client, cfg.Execution, b.logger)
		if err != nil {
			return err
		}
	}
	var costs arbitrage.CostEstimator
	if cfg.Trade.IncludeGasCost && estimator != nil {
		costs = estimator
	}
	detector := arbitrage.NewDetector(arbitrage.NewEvaluator(venues), gate, costs, b.logger)

	var executor arbitrage.Executor
	dryRun := cfg.Trade.DryRun || opts.DryRun
	if !dryRun && cfg.Execution.Target != config.TargetNone {
		target, err := b.buildTarget(client, estimator)
		if err != nil {
			return err
		}
		executor = flashloan.NewCoordinator(target, flashloan.CoordinatorConfig{
			CostMultiplierBps: cfg.Execution.CostMultiplierBps,
			Timeout:           cfg.Execution.Timeout,
		}, b.registry, b.logger)
	}

	sinks, err := b.buildSinks(ctx)
	if err != nil {
		return err
	}

	b.scheduler = arbitrage.NewScheduler(arbitrage.SchedulerConfig{
		Interval:           cfg.Scheduler.Interval,
		MaxConcurrentPaths: cfg.Scheduler.MaxConcurrentPaths,
		PathTimeout:        cfg.Scheduler.PathTimeout,
		DryRun:             dryRun,
	}, detector, executor, cfg.SwapPaths(), sinks, nil, b.logger)

	if opts.ServeMetrics && cfg.Reporting.MetricsAddr != "" {
		server, err := metrics.NewServer(cfg.Reporting.MetricsAddr, b.registry, b.history, b.logger)
		if err != nil {
			return err
		}
		b.server = server
		b.closers = append(b.closers, func() { _ = server.Close() })
	}

	b.logger.Info("Bot assembled",
		zap.String("chain", cfg.Network.Chain),
		zap.String("network", cfg.Network.Name),
		zap.Strings("venues", venues.IDs()),
		zap.Int("paths", len(cfg.SwapPaths())),
		zap.String("target", cfg.Execution.Target),
		zap.Bool("dry_run", dryRun))
	return nil
}

func newGasEstimator(client gas.Backend, cfg config.ExecutionConfig, logger *zap.Logger) (*gas.Estimator, error) {
	var fixed, max *big.Int
	var err error
	if cfg.GasPriceGwei != "" {
		if fixed, err = bmath.Gwei(cfg.GasPriceGwei); err != nil {
			return nil, fmt.Errorf("invalid gas price: %w", err)
		}
	}
	if cfg.MaxGasPriceGwei != "" {
		if max, err = bmath.Gwei(cfg.MaxGasPriceGwei); err != nil {
			return nil, fmt.Errorf("invalid max gas price: %w", err)
		}
	}
	return gas.NewEstimator(client, fixed, max, logger), nil
}

func (b *Bot) buildTarget(client *ethclient.Client, estimator *gas.Estimator) (flashloan.ExecutionTarget, error) {
	cfg := b.cfg
	switch cfg.Execution.Target {
	case config.TargetEVM:
		if client == nil || estimator == nil {
			return nil, fmt.Errorf("evm target requires an evm network")
		}
		key, err := crypto.HexToECDSA(cfg.Secrets.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}

		var opts []aave.Option
		if cfg.Execution.UseFlashbots {
			authKey, err := flashbotsKey(cfg.Secrets.FlashbotsKey)
			if err != nil {
				return nil, err
			}
			opts = append(opts, aave.WithPrivateSender(flashbots.NewClient(cfg.Network.FlashbotsRelay, authKey)))
		}

		target, err := aave.NewTarget(client, key, estimator, aave.Config{
			Contract:     common.HexToAddress(cfg.Execution.ContractAddress),
			ChainID:      big.NewInt(cfg.Network.ChainID),
			PollInterval: cfg.Execution.PollInterval,
		}, b.logger, opts...)
		if err != nil {
			return nil, err
		}
		b.logger.Info("EVM execution enabled",
			zap.String("from", target.From().Hex()),
			zap.String("contract", cfg.Execution.ContractAddress),
			zap.Bool("flashbots", cfg.Execution.UseFlashbots))
		return target, nil

	case config.TargetSolana:
		authority, err := solanaAuthority(cfg)
		if err != nil {
			return nil, err
		}
		accounts, err := solanaAccounts(cfg.Execution.Solana)
		if err != nil {
			return nil, err
		}
		return solana.NewTarget(rpc.New(cfg.Network.RPCEndpoint), authority, solana.Config{
			Accounts:     accounts,
			PollInterval: cfg.Execution.PollInterval,
		}, b.logger)
	}
	return nil, fmt.Errorf("unknown execution target %q", cfg.Execution.Target)
}

// flashbotsKey parses the relay signing key. Without one a throwaway key is
// generated; the relay only uses it for reputation.
func flashbotsKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return crypto.GenerateKey()
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid flashbots key: %w", err)
	}
	return key, nil
}

func solanaAuthority(cfg *config.Config) (sol.PrivateKey, error) {
	if path := cfg.Execution.Solana.KeypairPath; path != "" {
		return solana.LoadAuthority(path)
	}
	key, err := sol.PrivateKeyFromBase58(cfg.Secrets.SolanaPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.EnvSolanaPrivateKey, err)
	}
	return key, nil
}

func solanaAccounts(cfg config.SolanaConfig) (solana.Accounts, error) {
	var (
		accounts solana.Accounts
		errs     []error
	)
	parse := func(name, value string, dst *sol.PublicKey) {
		key, err := sol.PublicKeyFromBase58(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = key
	}
	parse("program_id", cfg.ProgramID, &accounts.Program)
	parse("state_account", cfg.StateAccount, &accounts.State)
	parse("source_token_account", cfg.SourceTokenAccount, &accounts.Source)
	parse("destination_token_account", cfg.DestinationTokenAccount, &accounts.Destination)
	return accounts, errors.Join(errs...)
}

func (b *Bot) buildSinks(ctx context.Context) ([]arbitrage.ResultSink, error) {
	rc := b.cfg.Reporting

	history, err := reporter.NewHistory(rc.HistorySize)
	if err != nil {
		return nil, err
	}
	b.history = history

	sinks := []arbitrage.ResultSink{
		reporter.NewLogSink(b.logger),
		reporter.NewMetricsSink(metrics.NewArbitrageMetrics(rc.Namespace, b.registry)),
		history,
	}

	if rc.Redis.Addr != "" {
		rdb, err := reporter.DialRedis(ctx, reporter.RedisConfig{
			Addr:     rc.Redis.Addr,
			Password: rc.Redis.Password,
			DB:       rc.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		sinks = append(sinks, reporter.NewRedisPublisher(rdb, rc.Redis.Channel))
	}

	if rc.Postgres.DSN != "" {
		pool, err := reporter.ConnectPostgres(ctx, rc.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		store := reporter.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	return sinks, nil
}

// Run runs the scheduler, and the metrics server when enabled, until ctx is
// cancelled. A metrics server failure is logged and does not stop
// evaluation.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting arbitrage bot...")

	var g errgroup.Group
	g.Go(func() error {
		return b.scheduler.Run(ctx)
	})
	if b.server != nil {
		g.Go(func() error {
			if err := b.server.Serve(ctx); err != nil {
				b.logger.Error("Metrics server stopped", zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// RunOnce evaluates every path a single time.
func (b *Bot) RunOnce(ctx context.Context) *types.CycleReport {
	return b.scheduler.RunCycle(ctx)
}

// History returns the recent execution outcomes.
func (b *Bot) History() *reporter.History {
	return b.history
}

// Close releases connections in reverse order of opening.
func (b *Bot) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
