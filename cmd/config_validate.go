package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/allowlist"
	"github.com/darmiel/lastword/internal/config"
	"github.com/darmiel/lastword/internal/core"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Loads the configuration, applies defaults and checks that the secret resolves
and the allow-list expression compiles. Prints the effective countdown settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			log.Error().Err(err).Msg("Configuration is invalid.")
			return BeQuietError{}
		}
		if _, err := cfg.ResolveSecret(); err != nil {
			log.Error().Err(err).Msg("Secret cannot be resolved.")
			return BeQuietError{}
		}
		if _, err := allowlist.New(cfg.AllowList.Entries, cfg.AllowList.Expr); err != nil {
			log.Error().Err(err).Msg("Allow-list is invalid.")
			return BeQuietError{}
		}

		logSuccess("configuration is valid")
		printEffective(cfg)
		return nil
	},
}

func printEffective(cfg *config.Config) {
	fmt.Printf("  %s:       %s\n", faint("Owner"), cfg.Owner)
	fmt.Printf("  %s:     %.2f days\n", faint("Waiting"), cfg.Workflow.WaitDays.Resolve(core.MaxWaitDays, core.DefaultWaitDays))
	fmt.Printf("  %s:  %.2f days\n", faint("Not before"), cfg.Tokens.NotBeforeDays.Resolve(core.MaxWaitDays, core.DefaultNotBeforeDays))
	fmt.Printf("  %s:  %.2f days\n", faint("Expiration"), cfg.Tokens.ExpirationDays.Resolve(core.MaxExpirationDays, core.DefaultExpirationDays))
	fmt.Printf("  %s:       %s\n", faint("Store"), cfg.Store.Driver)
	fmt.Printf("  %s:  %s\n", faint("Dispatcher"), cfg.Dispatcher.Type)
	fmt.Printf("  %s:     %s\n", faint("Content"), cfg.Content.Type)
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
