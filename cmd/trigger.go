package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/api"
	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/internal/service"
)

var (
	triggerNotBeforeDays  float64
	triggerExpirationDays float64
	triggerRemote         bool
	triggerDeliver        bool
	triggerJSON           bool
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Issue and verify trigger tokens",
	Long: `Trigger tokens let a trusted requester start a countdown within a time window.
They are self-contained: nothing is stored, the shared secret alone verifies them.`,
}

var triggerIssueCmd = &cobra.Command{
	Use:   "issue IDENTITY",
	Short: "Issue a trigger token for an identity",
	Example: `  # issue locally, usable from 7 days on for 7 more days
  lastword trigger issue -c lastword.yaml alice@example.com --not-before 7 --expiration 14

  # let the server issue and deliver it
  lastword trigger issue --remote --deliver alice@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if triggerRemote || triggerDeliver {
			return issueTriggerRemote(cmd, args[0])
		}

		svc, err := f.GetLocalServices()
		if err != nil {
			return err
		}
		tok, err := svc.Tokens.Issue(cmd.Context(), args[0], service.IssueOptions{
			NotBeforeDays:  triggerNotBeforeDays,
			ExpirationDays: triggerExpirationDays,
		})
		if err != nil {
			return err
		}
		return printTriggerToken(tok, false)
	},
}

func issueTriggerRemote(cmd *cobra.Command, identity string) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}
	res, correlation, err := cli.IssueTrigger(cmd.Context(), api.IssueTriggerPayload{
		Identity:       identity,
		NotBeforeDays:  triggerNotBeforeDays,
		ExpirationDays: triggerExpirationDays,
		Deliver:        triggerDeliver,
	})
	if err != nil {
		return logError(err, correlation, "failed to issue trigger token")
	}
	return printTriggerToken(res.Token, res.Delivered)
}

func printTriggerToken(tok *core.TriggerToken, delivered bool) error {
	if triggerJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tok)
	}

	fmt.Println(bold("\n── Trigger Token ──"))
	fmt.Printf("  %s:    %s\n", faint("Identity"), tok.Identity)
	fmt.Printf("  %s:  %s (in %s)\n", faint("Not before"), tok.NotBefore.Format(time.RFC3339),
		time.Until(tok.NotBefore).Round(time.Minute))
	fmt.Printf("  %s:  %s\n", faint("Expires at"), tok.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("  %s: %s\n", faint("Fingerprint"), audit.Fingerprint(audit.TriggerFingerprintType, tok.Value))
	if delivered {
		fmt.Printf("  %s:   %s\n", faint("Delivered"), greenCheck)
	}
	fmt.Println()
	fmt.Println(tok.Value)
	return nil
}

var triggerVerifyCmd = &cobra.Command{
	Use:   "verify TOKEN",
	Short: "Verify a trigger token",
	Long:  `Verifies a trigger token locally (with --config) or against the server (with --remote). Use "-" to read it from stdin.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readArg(args[0])
		if err != nil {
			return err
		}

		if triggerRemote {
			cli, err := f.GetClient()
			if err != nil {
				return err
			}
			res, correlation, err := cli.VerifyTrigger(cmd.Context(), raw)
			if err != nil {
				return logError(err, correlation, "failed to verify trigger token")
			}
			if !res.Valid {
				log.Error().Str("reason", res.Reason).Msgf("%s %s", redCross, res.Message)
				return BeQuietError{}
			}
			logSuccess("token is valid for %s until %s", bold(res.Claims.Identity),
				res.Claims.ExpiresAt.Format(time.RFC3339))
			return nil
		}

		svc, err := f.GetLocalServices()
		if err != nil {
			return err
		}
		claims, err := svc.Tokens.Verify(cmd.Context(), raw)
		if err != nil {
			if service.IsTokenRejection(err) {
				log.Error().Msgf("%s %s", redCross, service.Explain(err))
				log.Debug().Err(err).Msg("verification error")
				return BeQuietError{}
			}
			return err
		}
		logSuccess("token is valid for %s until %s", bold(claims.Identity),
			color.CyanString(claims.ExpiresAt.Format(time.RFC3339)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
	triggerCmd.AddCommand(triggerIssueCmd, triggerVerifyCmd)

	bindRemoteFlag(triggerCmd.PersistentFlags(), &triggerRemote)
	bindWindowFlags(triggerIssueCmd.Flags(), &triggerNotBeforeDays, &triggerExpirationDays)
	triggerIssueCmd.Flags().BoolVar(&triggerDeliver, "deliver", false, "Let the server send the token to the identity (implies --remote)")
	triggerIssueCmd.Flags().BoolVar(&triggerJSON, "json", false, "Print the token as JSON")
}
