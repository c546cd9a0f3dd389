package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbbot/cmd/bot"
	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/utils"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate every path once without executing and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		b, err := bot.New(cmd.Context(), cfg, log, bot.Options{DryRun: true})
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		defer b.Close()

		report := b.RunOnce(cmd.Context())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
