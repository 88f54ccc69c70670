package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/api"
	"github.com/darmiel/lastword/internal/messages"
)

var (
	inviteOwner  string
	inviteRemote bool
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Invite trusted contacts",
	Long: `Invitations are deterministic signatures over (owner, contact). A contact who replies with
the signature can start a countdown at any time. They never expire.`,
}

var inviteIssueCmd = &cobra.Command{
	Use:   "issue CONTACT",
	Short: "Compute the invitation signature of a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := f.GetLocalServices()
		if err != nil {
			return err
		}
		owner := inviteOwner
		if owner == "" {
			owner = svc.Config.Owner
		}
		tok, err := svc.Invitations.Issue(owner, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", faint("Owner"), tok.Owner)
		fmt.Printf("%s: %s\n", faint("Contact"), tok.Contact)
		fmt.Println(messages.InvitationRef(tok.Signature))
		return nil
	},
}

var inviteVerifyCmd = &cobra.Command{
	Use:   "verify CONTACT SIGNATURE",
	Short: "Check an invitation signature",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var valid bool
		if inviteRemote {
			cli, err := f.GetClient()
			if err != nil {
				return err
			}
			ok, correlation, err := cli.VerifyInvitation(cmd.Context(), api.VerifyInvitationPayload{
				Owner:     inviteOwner,
				Contact:   args[0],
				Signature: args[1],
			})
			if err != nil {
				return logError(err, correlation, "failed to verify invitation")
			}
			valid = ok
		} else {
			svc, err := f.GetLocalServices()
			if err != nil {
				return err
			}
			owner := inviteOwner
			if owner == "" {
				owner = svc.Config.Owner
			}
			valid = svc.Invitations.Verify(owner, args[0], args[1])
		}

		if !valid {
			log.Error().Msgf("%s the signature does not belong to %s", redCross, bold(args[0]))
			return BeQuietError{}
		}
		logSuccess("the signature is a genuine invitation of %s", bold(args[0]))
		return nil
	},
}

var inviteSendCmd = &cobra.Command{
	Use:   "send CONTACT...",
	Short: "Send invitations to contacts through the server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		results, correlation, err := cli.Invite(cmd.Context(), args)
		if err != nil {
			return logError(err, correlation, "failed to send invitations")
		}

		t := newTable()
		t.AppendHeader(table.Row{"Contact", "Sent", "Signature", "Error"})
		failed := 0
		for _, r := range results {
			status := greenCheck
			if !r.Sent {
				status = redCross
				failed++
			}
			t.AppendRow(table.Row{r.Contact, status, truncate(r.Signature, 16), r.Error})
		}
		applyTableFormat(t)
		t.Render()

		if failed > 0 {
			log.Warn().Msgf("%d of %d invitations could not be sent", failed, len(results))
			return BeQuietError{}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inviteCmd)
	inviteCmd.AddCommand(inviteIssueCmd, inviteVerifyCmd, inviteSendCmd)

	inviteCmd.PersistentFlags().StringVar(&inviteOwner, "owner", "", "Owner address (default: owner from the config)")
	bindRemoteFlag(inviteVerifyCmd.Flags(), &inviteRemote)
}
