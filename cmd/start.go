package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/cmd/bot"
	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/utils"
)

var dryRun bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := cmd.Context()
		b, err := bot.New(ctx, cfg, log, bot.Options{DryRun: dryRun, ServeMetrics: true})
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		defer b.Close()

		if err := b.Run(ctx); err != nil {
			log.Error("Bot stopped with error", zap.Error(err))
			return err
		}
		log.Info("Shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report opportunities without executing them")
}
