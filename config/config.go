package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	sol "github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v2"

	"github.com/michaelpento.lv/arbbot/types"
	bmath "github.com/michaelpento.lv/arbbot/utils/math"
)

const (
	ChainEVM    = "evm"
	ChainSolana = "solana"

	VenueV2Router = "v2router"
	VenueV2Pair   = "v2pair"
	VenueJupiter  = "jupiter"

	TargetNone   = "none"
	TargetEVM    = "evm"
	TargetSolana = "solana"

	DefaultConfigFile = "config.yaml"
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Tokens    []TokenConfig   `yaml:"tokens"`
	BaseToken string          `yaml:"base_token"`
	Venues    []VenueConfig   `yaml:"venues"`
	Paths     []PathConfig    `yaml:"paths"`
	Trade     TradeConfig     `yaml:"trade"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Execution ExecutionConfig `yaml:"execution"`
	Reporting ReportingConfig `yaml:"reporting"`

	// Secrets only ever come from the environment.
	Secrets Secrets `yaml:"-"`

	registry *TokenRegistry
	paths    []types.SwapPath
}

type NetworkConfig struct {
	Chain          string `yaml:"chain"`
	Name           string `yaml:"name"`
	RPCEndpoint    string `yaml:"rpc_endpoint"`
	ChainID        int64  `yaml:"chain_id"`
	FlashbotsRelay string `yaml:"flashbots_relay"`
}

type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

type VenueConfig struct {
	ID           string           `yaml:"id"`
	Kind         string           `yaml:"kind"`
	Router       string           `yaml:"router"`
	Factory      string           `yaml:"factory"`
	InitCodeHash string           `yaml:"init_code_hash"`
	FeeBps       uint64           `yaml:"fee_bps"`
	BaseURL      string           `yaml:"base_url"`
	SlippageBps  int              `yaml:"slippage_bps"`
	RateLimit    *RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
	WaitTimeout       time.Duration `yaml:"wait_timeout"`
}

type PathConfig struct {
	Name     string   `yaml:"name"`
	Tokens   []string `yaml:"tokens"`
	Venues   []string `yaml:"venues"`
	AmountIn string   `yaml:"amount_in"`
}

type TradeConfig struct {
	// AmountIn is in human units of the base token, e.g. "10" WETH.
	AmountIn         string `yaml:"amount_in"`
	MinProfitPercent string `yaml:"min_profit_percent"`
	IncludeGasCost   bool   `yaml:"include_gas_cost"`
	DryRun           bool   `yaml:"dry_run"`
}

type SchedulerConfig struct {
	Interval           time.Duration `yaml:"interval"`
	MaxConcurrentPaths int           `yaml:"max_concurrent_paths"`
	PathTimeout        time.Duration `yaml:"path_timeout"`
}

type ExecutionConfig struct {
	Target            string        `yaml:"target"`
	ContractAddress   string        `yaml:"contract_address"`
	CostMultiplierBps uint64        `yaml:"cost_multiplier_bps"`
	Timeout           time.Duration `yaml:"timeout"`
	GasPriceGwei      string        `yaml:"gas_price_gwei"`
	MaxGasPriceGwei   string        `yaml:"max_gas_price_gwei"`
	UseFlashbots      bool          `yaml:"use_flashbots"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	Solana            SolanaConfig  `yaml:"solana"`
}

type SolanaConfig struct {
	ProgramID               string `yaml:"program_id"`
	StateAccount            string `yaml:"state_account"`
	SourceTokenAccount      string `yaml:"source_token_account"`
	DestinationTokenAccount string `yaml:"destination_token_account"`
	KeypairPath             string `yaml:"keypair_path"`
}

type ReportingConfig struct {
	MetricsAddr string         `yaml:"metrics_addr"`
	Namespace   string         `yaml:"namespace"`
	HistorySize int            `yaml:"history_size"`
	Redis       RedisConfig    `yaml:"redis"`
	Postgres    PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type Secrets struct {
	PrivateKey       string
	FlashbotsKey     string
	SolanaPrivateKey string
	JupiterAPIKey    string
}

// DefaultConfig returns the chain independent defaults. Chain specific
// defaults are filled in by applyDefaults once the chain is known.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Chain: ChainEVM,
		},
		Trade: TradeConfig{
			MinProfitPercent: "0.5",
		},
		Scheduler: SchedulerConfig{
			Interval:           60 * time.Second,
			MaxConcurrentPaths: 4,
			PathTimeout:        30 * time.Second,
		},
		Execution: ExecutionConfig{
			Target:            TargetNone,
			CostMultiplierBps: 12000,
			Timeout:           2 * time.Minute,
			GasPriceGwei:      "50",
			MaxGasPriceGwei:   "500",
			PollInterval:      2 * time.Second,
		},
		Reporting: ReportingConfig{
			MetricsAddr: ":9090",
			Namespace:   "arbbot",
			HistorySize: 256,
			Redis: RedisConfig{
				Channel: "arbbot:cycles",
			},
		},
	}
}

func (c *Config) applyDefaults() {
	switch c.Network.Chain {
	case ChainSolana:
		if c.Network.Name == "" {
			c.Network.Name = "mainnet"
		}
		if c.Network.RPCEndpoint == "" {
			c.Network.RPCEndpoint = "https://api.mainnet-beta.solana.com"
		}
		if c.BaseToken == "" {
			c.BaseToken = "SOL"
		}
		if len(c.Venues) == 0 {
			c.Venues = []VenueConfig{{ID: "jupiter", Kind: VenueJupiter}}
		}
		if c.Trade.AmountIn == "" {
			c.Trade.AmountIn = "1"
		}
	default:
		if c.Network.Name == "" {
			c.Network.Name = "ethereum"
		}
		if c.Network.RPCEndpoint == "" {
			c.Network.RPCEndpoint = "http://localhost:8545"
		}
		if c.Network.FlashbotsRelay == "" {
			c.Network.FlashbotsRelay = "https://relay.flashbots.net"
		}
		if c.BaseToken == "" {
			c.BaseToken = "WETH"
		}
		if len(c.Venues) == 0 {
			c.Venues = []VenueConfig{
				{ID: "uniswap", Kind: VenueV2Router},
				{ID: "sushiswap", Kind: VenueV2Router},
			}
		}
		if c.Trade.AmountIn == "" {
			c.Trade.AmountIn = "10"
		}
	}
	if c.Network.ChainID == 0 {
		if n, ok := LookupNetwork(c.Network.Chain, c.Network.Name); ok {
			c.Network.ChainID = n.ChainID
		}
	}
	if c.Execution.Target == "" {
		c.Execution.Target = TargetNone
	}
}

// ValidateConfig checks every setting and resolves tokens and paths. All
// problems are reported together.
func (c *Config) ValidateConfig() error {
	var errs []string

	network, known := LookupNetwork(c.Network.Chain, c.Network.Name)
	switch c.Network.Chain {
	case ChainEVM, ChainSolana:
	default:
		errs = append(errs, fmt.Sprintf("network.chain must be %q or %q", ChainEVM, ChainSolana))
	}
	if !known && len(c.Tokens) == 0 {
		errs = append(errs, fmt.Sprintf("unknown network %q requires a tokens list", c.Network.Name))
	}
	if c.Network.RPCEndpoint == "" && (c.Network.Chain == ChainEVM || c.Execution.Target != TargetNone) {
		errs = append(errs, "network.rpc_endpoint must be specified")
	}

	registry, err := NewTokenRegistry(c.Network.Chain, network.Tokens, c.Tokens)
	if err != nil {
		errs = append(errs, err.Error())
	}

	var base types.Token
	if registry != nil {
		var ok bool
		if base, ok = registry.Lookup(c.BaseToken); !ok {
			errs = append(errs, fmt.Sprintf("base_token %q is not a known token", c.BaseToken))
		}
	}

	errs = append(errs, c.validateVenues(network)...)

	if _, err := bmath.ParseRat(c.Trade.MinProfitPercent); err != nil {
		errs = append(errs, fmt.Sprintf("trade.min_profit_percent: %v", err))
	}
	if base.Address != "" {
		if amt, err := bmath.ParseUnits(c.Trade.AmountIn, base.Decimals); err != nil || amt.Sign() <= 0 {
			errs = append(errs, fmt.Sprintf("trade.amount_in %q must be a positive amount of %s", c.Trade.AmountIn, base.Symbol))
		}
	}
	if c.Trade.IncludeGasCost {
		// Gas is paid in the native coin, so it can only be netted against
		// a path denominated in its wrapped form.
		if c.Network.Chain != ChainEVM || network.WrappedNative == "" || !strings.EqualFold(base.Address, network.WrappedNative) {
			errs = append(errs, "trade.include_gas_cost requires the base token to be the network's wrapped native token")
		}
	}

	if c.Scheduler.Interval <= 0 {
		errs = append(errs, "scheduler.interval must be positive")
	}
	if c.Scheduler.MaxConcurrentPaths <= 0 {
		errs = append(errs, "scheduler.max_concurrent_paths must be positive")
	}
	if c.Scheduler.PathTimeout < 0 {
		errs = append(errs, "scheduler.path_timeout must not be negative")
	}

	errs = append(errs, c.validateExecution()...)

	if c.Reporting.HistorySize < 0 {
		errs = append(errs, "reporting.history_size must not be negative")
	}

	if registry != nil && base.Address != "" {
		paths, pathErrs := c.resolvePaths(registry, base, network)
		errs = append(errs, pathErrs...)
		c.paths = paths
	}
	c.registry = registry

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateVenues(network Network) []string {
	var errs []string
	if len(c.Venues) == 0 {
		errs = append(errs, "at least one venue must be configured")
	}
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		prefix := fmt.Sprintf("venues[%d]", i)
		if v.ID == "" {
			errs = append(errs, prefix+": id must be specified")
			continue
		}
		prefix = fmt.Sprintf("venue %q", v.ID)
		if seen[v.ID] {
			errs = append(errs, prefix+": duplicate id")
		}
		seen[v.ID] = true

		switch v.Kind {
		case VenueV2Router:
			if c.Network.Chain != ChainEVM {
				errs = append(errs, prefix+": v2router requires an evm network")
			}
			if v.Router == "" {
				if _, ok := network.Routers[v.ID]; !ok {
					errs = append(errs, prefix+": router address must be specified")
				}
			} else if !common.IsHexAddress(v.Router) {
				errs = append(errs, prefix+": invalid router address")
			}
		case VenueV2Pair:
			if c.Network.Chain != ChainEVM {
				errs = append(errs, prefix+": v2pair requires an evm network")
			}
			if v.Factory == "" || v.InitCodeHash == "" {
				if _, ok := network.Factories[v.ID]; !ok {
					errs = append(errs, prefix+": factory and init_code_hash must be specified")
				}
			} else {
				if !common.IsHexAddress(v.Factory) {
					errs = append(errs, prefix+": invalid factory address")
				}
				if len(common.FromHex(v.InitCodeHash)) != common.HashLength {
					errs = append(errs, prefix+": init_code_hash must be 32 bytes")
				}
			}
			if v.FeeBps >= bmath.BpsDenominator {
				errs = append(errs, prefix+": fee_bps must be below 10000")
			}
		case VenueJupiter:
			if c.Network.Chain != ChainSolana {
				errs = append(errs, prefix+": jupiter requires a solana network")
			}
			if v.SlippageBps < 0 || v.SlippageBps >= bmath.BpsDenominator {
				errs = append(errs, prefix+": slippage_bps out of range")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown kind %q", prefix, v.Kind))
		}

		if v.RateLimit != nil {
			if err := v.RateLimit.Validate(); err != nil {
				errs = append(errs, fmt.Sprintf("%s: rate limit: %v", prefix, err))
			}
		}
	}
	return errs
}

func (c *Config) validateExecution() []string {
	var errs []string
	e := c.Execution
	switch e.Target {
	case TargetNone:
		return nil
	case TargetEVM:
		if c.Network.Chain != ChainEVM {
			errs = append(errs, "execution.target evm requires an evm network")
		}
		if !common.IsHexAddress(e.ContractAddress) {
			errs = append(errs, "execution.contract_address must be a valid address")
		}
		if c.Network.ChainID <= 0 {
			errs = append(errs, "network.chain_id must be specified")
		}
		if c.Secrets.PrivateKey == "" {
			errs = append(errs, EnvPrivateKey+" must be set for evm execution")
		}
		if e.UseFlashbots && c.Network.FlashbotsRelay == "" {
			errs = append(errs, "network.flashbots_relay must be specified when use_flashbots is set")
		}
		price, err := bmath.Gwei(e.GasPriceGwei)
		if e.GasPriceGwei != "" && err != nil {
			errs = append(errs, fmt.Sprintf("execution.gas_price_gwei: %v", err))
		}
		maxPrice, err := bmath.Gwei(e.MaxGasPriceGwei)
		if e.MaxGasPriceGwei != "" && err != nil {
			errs = append(errs, fmt.Sprintf("execution.max_gas_price_gwei: %v", err))
		}
		if price != nil && maxPrice != nil && maxPrice.Sign() > 0 && price.Cmp(maxPrice) > 0 {
			errs = append(errs, "execution.gas_price_gwei exceeds max_gas_price_gwei")
		}
	case TargetSolana:
		if c.Network.Chain != ChainSolana {
			errs = append(errs, "execution.target solana requires a solana network")
		}
		for name, key := range map[string]string{
			"program_id":                e.Solana.ProgramID,
			"state_account":             e.Solana.StateAccount,
			"source_token_account":      e.Solana.SourceTokenAccount,
			"destination_token_account": e.Solana.DestinationTokenAccount,
		} {
			if _, err := sol.PublicKeyFromBase58(key); err != nil {
				errs = append(errs, fmt.Sprintf("execution.solana.%s must be a valid public key", name))
			}
		}
		if e.Solana.KeypairPath == "" && c.Secrets.SolanaPrivateKey == "" {
			errs = append(errs, "execution.solana.keypair_path or "+EnvSolanaPrivateKey+" must be set")
		}
	default:
		errs = append(errs, fmt.Sprintf("execution.target %q must be none, evm or solana", e.Target))
	}

	if e.CostMultiplierBps < bmath.BpsDenominator {
		errs = append(errs, "execution.cost_multiplier_bps must be at least 10000")
	}
	if e.Timeout <= 0 {
		errs = append(errs, "execution.timeout must be positive")
	}
	return errs
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout < 0 {
		return fmt.Errorf("wait timeout must not be negative")
	}
	return nil
}

// Registry returns the resolved token registry. It is nil until the
// configuration has been validated.
func (c *Config) Registry() *TokenRegistry {
	return c.registry
}

// SwapPaths returns the resolved paths in configuration order.
func (c *Config) SwapPaths() []types.SwapPath {
	out := make([]types.SwapPath, len(c.paths))
	copy(out, c.paths)
	return out
}

// Venue returns the venue configured under id.
func (c *Config) Venue(id string) (VenueConfig, bool) {
	for _, v := range c.Venues {
		if v.ID == id {
			return v, true
		}
	}
	return VenueConfig{}, false
}

// LoadConfig reads cfgFile over the defaults, applies environment overrides
// and validates the result. An empty cfgFile falls back to ./config.yaml when
// it exists.
func LoadConfig(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	if cfgFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			cfgFile = DefaultConfigFile
		}
	}
	if cfgFile != "" {
		data, err := os.ReadFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := LoadEnv(); err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	cfg.applyDefaults()

	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes YAML without consulting the environment or the
// filesystem.
func ParseConfig(data []byte, secrets Secrets) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Secrets = secrets
	cfg.applyDefaults()
	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var errNoTokens = errors.New("no tokens configured")
