package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/session"
)

var sessionTTL time.Duration

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage owner sessions",
}

var sessionMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint an owner session token from the local config",
	Long: `Mints a session token for the admin API. The signing key is derived from the shared secret,
so this only works where the server configuration is available.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := f.GetLocalServices()
		if err != nil {
			return err
		}
		tok, err := svc.Sessions.Mint(svc.Config.Owner, sessionTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok.Value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionMintCmd)

	sessionMintCmd.Flags().DurationVar(&sessionTTL, "ttl", session.DefaultTTL, "Lifetime of the session")
}
