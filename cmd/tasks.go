package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and trigger background tasks",
	Long: `Background tasks run on the server, e.g. the resume task that wakes countdowns when they are due.
Requires an authenticated session (lastword login).`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
