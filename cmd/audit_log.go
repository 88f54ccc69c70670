package cmd

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/pkg/client"
)

var auditLogOpts client.ListAuditsOpts

// auditLogCmd represents the audit log command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit log entries",
	Long: `Shows the most recent audit entries, optionally filtered. Credentials never appear in the log,
use the fingerprint to correlate a token or an invitation signature with its entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching audit log...")
		audits, correlation, err := cli.ListAudits(cmd.Context(), auditLogOpts)
		if err != nil {
			return logError(err, correlation, "failed to retrieve audit log")
		}

		log.Info().Msgf("Retrieved %d audit entries", len(audits))

		t := newTable()
		t.AppendHeader(table.Row{
			"Time", "Action", "Identity", "Instance", "State", "OK", "Error",
		})

		for _, e := range audits {
			status := greenCheck
			if !e.Success {
				status = redCross
			}
			t.AppendRow(table.Row{
				e.Time.Local().Format(time.RFC3339),
				e.Action,
				truncate(e.Identity, 35),
				truncate(e.Instance, 13),
				e.State,
				status,
				truncate(e.Error, 60),
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	flags := auditLogCmd.Flags()
	flags.UintVarP(&auditLogOpts.Limit, "limit", "n", 25, "Number of audit entries to retrieve")
	flags.StringVar(&auditLogOpts.CorrelationID, "correlation-id", "", "Filter by correlation id")
	flags.StringVar(&auditLogOpts.Identity, "identity", "", "Filter by identity")
	flags.StringVar(&auditLogOpts.Instance, "instance", "", "Filter by workflow instance")
	flags.StringVar(&auditLogOpts.Action, "action", "", "Filter by action (e.g. trigger.verify)")
	flags.StringVar(&auditLogOpts.Fingerprint, "fingerprint", "", "Filter by credential fingerprint")
}
