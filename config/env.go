package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvRPCURL           = "RPC_URL"
	EnvContractAddress  = "CONTRACT_ADDRESS"
	EnvPrivateKey       = "PRIVATE_KEY"
	EnvFlashbotsKey     = "FLASHBOTS_KEY"
	EnvSolanaPrivateKey = "SOLANA_PRIVATE_KEY" // keypair file path or base58 key
	EnvJupiterAPIKey    = "JUPITER_API_KEY"
	EnvRedisAddr        = "REDIS_ADDR"
	EnvDatabaseURL      = "DATABASE_URL"
	EnvDryRun           = "DRY_RUN"
)

// LoadEnv loads environment variables from .env file. A missing file is not
// an error.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment settings onto cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvRPCURL); v != "" {
		cfg.Network.RPCEndpoint = v
	}
	if v := os.Getenv(EnvContractAddress); v != "" {
		cfg.Execution.ContractAddress = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Reporting.Redis.Addr = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Reporting.Postgres.DSN = v
	}
	if v := os.Getenv(EnvDryRun); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trade.DryRun = b
		}
	}

	cfg.Secrets.PrivateKey = strings.TrimPrefix(os.Getenv(EnvPrivateKey), "0x")
	cfg.Secrets.FlashbotsKey = strings.TrimPrefix(os.Getenv(EnvFlashbotsKey), "0x")
	cfg.Secrets.JupiterAPIKey = os.Getenv(EnvJupiterAPIKey)

	if v := os.Getenv(EnvSolanaPrivateKey); v != "" {
		if strings.HasSuffix(v, ".json") {
			cfg.Execution.Solana.KeypairPath = v
		} else {
			cfg.Secrets.SolanaPrivateKey = v
		}
	}
}
