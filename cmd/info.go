package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/api"
	"github.com/darmiel/lastword/internal/buildinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the version and health of lastword",
	Long: `Without a server, prints the local build and, if a configuration file is found, the
effective countdown settings. With a server, prints its build, uptime and whether countdowns
are being resumed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if f.serverAddr() == "" {
			return infoLocally(cmd, args)
		}
		return infoRemote(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func infoRemote(cmd *cobra.Command, _ []string) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}
	log.Debug().Msg("Fetching server info...")
	about, correlation, err := cli.Info(cmd.Context())
	if err != nil {
		return logError(err, correlation, "failed to get info from server")
	}
	printBuild("Server", about.Info)
	fmt.Printf("  %s:    %s (%s ago)\n", faint("Started"),
		about.StartedAt.Local().Format(time.DateTime), time.Since(about.StartedAt).Round(time.Second))

	health, correlation, err := cli.Health(cmd.Context())
	if err != nil {
		return logError(err, correlation, "failed to get health from server")
	}
	printHealth(health)
	return nil
}

func infoLocally(_ *cobra.Command, _ []string) error {
	printBuild("Local", buildinfo.GetBuildInfo())

	cfg, err := f.LoadConfig()
	if err != nil {
		log.Debug().Err(err).Msg("no usable local configuration")
		fmt.Println(faint("\n  no local configuration, pass --config to show effective settings"))
		return nil
	}
	fmt.Println(bold("\n── Effective configuration ──"))
	printEffective(cfg)
	return nil
}

func printBuild(where string, info buildinfo.Info) {
	fmt.Println(bold(fmt.Sprintf("\n── %s lastword build ──", where)))
	fmt.Printf("  %s:    %s\n", faint("Version"), info.Version)
	fmt.Printf("  %s:     %s\n", faint("Commit"), info.CommitHash)
}

func printHealth(h *api.HealthResponse) {
	status := color.GreenString(h.Status)
	if len(h.Reasons) > 0 {
		status = color.RedString(h.Status)
	}
	fmt.Printf("  %s:     %s\n", faint("Health"), status)
	for _, reason := range h.Reasons {
		fmt.Printf("              %s %s\n", redCross, reason)
	}
	if h.Dispatcher != "" {
		fmt.Printf("  %s: %s\n", faint("Dispatcher"), h.Dispatcher)
	}
	if h.Resume != nil {
		fmt.Printf("  %s:     %d runs, %d failed, last %s\n", faint("Resume"),
			h.Resume.Runs, h.Resume.Failures, relativeOrNever(h.Resume.LastRun))
	}
}

func relativeOrNever(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}
