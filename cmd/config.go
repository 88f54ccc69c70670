package cmd

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Check or print the server configuration",
	Long: `Works on the file passed with --config (or LASTWORD_CONFIG) without contacting a server.
"validate" checks that a countdown could be started with it, "show" prints what serve would use.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
