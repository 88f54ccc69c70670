package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/cliconfig"
	"github.com/darmiel/lastword/pkg/client"
)

const defaultLoginTTL = 24 * time.Hour

var (
	loginTTL        time.Duration
	loginSetDefault bool
)

var loginCmd = &cobra.Command{
	Use:   "login [SESSION-TOKEN]",
	Short: "Authenticate with a lastword server",
	Long: `Stores an owner session token for the server so that admin commands (workflows, tasks, audit)
are authenticated. Without an argument, a session is minted from the local config (--config).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server := f.serverAddr()
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}

		var raw string
		if len(args) == 1 {
			var err error
			if raw, err = readArg(args[0]); err != nil {
				return err
			}
		} else {
			svc, err := f.GetLocalServices()
			if err != nil {
				return err
			}
			minted, err := svc.Sessions.Mint(svc.Config.Owner, loginTTL)
			if err != nil {
				return err
			}
			raw = minted.Value
		}

		cred, err := cliconfig.CredentialFromToken(raw)
		if err != nil {
			return err
		}
		if cred.Expired(time.Now()) {
			return fmt.Errorf("session for %q expired at %s", cred.Subject, cred.ExpiresAt.Local().Format(time.RFC1123))
		}

		// check the token against an admin endpoint before saving it
		log.Info().Msgf("Checking session with server %q...", server)
		cli := client.New(server, client.WithAuthToken(raw))
		if _, correlation, err := cli.ListTasks(cmd.Context()); err != nil {
			return logError(err, correlation, "the server rejected the session")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			return err
		}
		if err := cfg.SetCredential(server, cred); err != nil {
			return err
		}
		if loginSetDefault {
			cfg.DefaultServer = server
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("logged in as %s until %s", bold(cred.Subject), cred.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session for the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		server := f.serverAddr()
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}
		cfg, err := cliconfig.Load()
		if err != nil {
			return err
		}
		removed, err := cfg.RemoveCredential(server)
		if err != nil {
			return err
		}
		if !removed {
			log.Info().Msgf("No saved session for %q", server)
			return nil
		}
		if err := cliconfig.Save(cfg); err != nil {
			return err
		}
		logSuccess("removed session for %s", bold(server))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().DurationVar(&loginTTL, "ttl", defaultLoginTTL, "Lifetime of a minted session")
	loginCmd.Flags().BoolVar(&loginSetDefault, "default", false, "Use this server when --server is not given")
}
