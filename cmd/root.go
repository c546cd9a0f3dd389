package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbbot/utils"
)

var (
	cfgFile   string
	debug     bool
	logFile   string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "arbbot",
	Short: "A CLI bot for cross-venue arbitrage",
	Long: `A CLI bot that quotes configured swap paths across DEX venues on a fixed
interval, reports profitable round trips and optionally settles them
atomically through a flash loan contract on EVM chains or Solana.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := utils.InitLogger(utils.LoggerOptions{
			Debug:  debug,
			Format: logFormat,
			File:   logFile,
		})
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", utils.DefaultLogFile, "log file, empty logs to stdout only")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", utils.LogFormatJSON, "log encoding: json or console")
}
