package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbbot/config"
	bmath "github.com/michaelpento.lv/arbbot/utils/math"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate the configuration and print what it resolves to",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Network:   %s/%s (chain id %d)\n", cfg.Network.Chain, cfg.Network.Name, cfg.Network.ChainID)
	fmt.Fprintf(w, "RPC:       %s\n", cfg.Network.RPCEndpoint)
	fmt.Fprintf(w, "Base:      %s\n", cfg.BaseToken)
	fmt.Fprintf(w, "Threshold: %s%%\n", cfg.Trade.MinProfitPercent)
	fmt.Fprintf(w, "Target:    %s (dry run: %t)\n", cfg.Execution.Target, cfg.Trade.DryRun)

	fmt.Fprintln(w, "\nVenues:")
	for _, v := range cfg.Venues {
		fmt.Fprintf(w, "  %-12s %s\n", v.ID, v.Kind)
	}

	fmt.Fprintln(w, "\nPaths:")
	for _, p := range cfg.SwapPaths() {
		fmt.Fprintf(w, "  %-20s %s  amount %s\n", p.Name, p.Label(),
			bmath.FormatUnits(p.AmountIn, p.Tokens[0].Decimals))
	}

	// Secrets are only reported as present or missing.
	fmt.Fprintln(w, "\nSecrets:")
	for _, s := range []struct {
		name string
		set  bool
	}{
		{config.EnvPrivateKey, cfg.Secrets.PrivateKey != ""},
		{config.EnvFlashbotsKey, cfg.Secrets.FlashbotsKey != ""},
		{config.EnvSolanaPrivateKey, cfg.Secrets.SolanaPrivateKey != "" || cfg.Execution.Solana.KeypairPath != ""},
		{config.EnvJupiterAPIKey, cfg.Secrets.JupiterAPIKey != ""},
	} {
		state := "missing"
		if s.set {
			state = "set"
		}
		fmt.Fprintf(w, "  %-20s %s\n", s.name, state)
	}
	if names := reportingTargets(cfg); len(names) > 0 {
		fmt.Fprintf(w, "\nReporting: %s\n", strings.Join(names, ", "))
	}
}

func reportingTargets(cfg *config.Config) []string {
	names := []string{"log", "history"}
	if cfg.Reporting.MetricsAddr != "" {
		names = append(names, "metrics "+cfg.Reporting.MetricsAddr)
	}
	if cfg.Reporting.Redis.Addr != "" {
		names = append(names, "redis "+cfg.Reporting.Redis.Addr)
	}
	if cfg.Reporting.Postgres.DSN != "" {
		names = append(names, "postgres")
	}
	return names
}
