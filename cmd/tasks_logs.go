package cmd

import (
	"fmt"
	"slices"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/tasks"
)

var logLevels = []string{"debug", "info", "warn", "error"}

var tasksLogsMinLevel string

var tasksLogsCmd = &cobra.Command{
	Use:   "logs NAME",
	Short: "Show the log of the latest run of a background task",
	Long: `Prints the lines recorded during the current or most recent run of a task, for example
"lastword tasks logs workflow.resume" to see which countdowns were woken.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if name == "" {
			return fmt.Errorf("task name cannot be empty")
		}
		minRank := slices.Index(logLevels, tasksLogsMinLevel)
		if minRank < 0 {
			return fmt.Errorf("unknown level %q, use one of %v", tasksLogsMinLevel, logLevels)
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Retrieving logs for task '%s'...", name)
		logs, correlation, err := cli.GetTaskLogs(cmd.Context(), name)
		if err != nil {
			return logError(err, correlation, "failed to retrieve task logs")
		}

		if statuses, _, err := cli.ListTasks(cmd.Context()); err == nil {
			if i := slices.IndexFunc(statuses, func(s tasks.TaskStatus) bool { return s.Name == name }); i >= 0 {
				printRunHeader(statuses[i])
			}
		}

		lines := filterLogs(logs, minRank)
		if len(lines) == 0 {
			fmt.Println(faint("  no log lines at level " + tasksLogsMinLevel + " or above"))
			return nil
		}
		for _, entry := range lines {
			fmt.Printf("%s │ %s │ %s\n", faint(entry.Time.Format("15:04:05")), levelTag(entry.Level), entry.Message)
		}
		return nil
	},
}

// filterLogs drops entries below minRank. Unknown levels are always shown.
func filterLogs(logs []tasks.LogEntry, minRank int) []tasks.LogEntry {
	var out []tasks.LogEntry
	for _, entry := range logs {
		if rank := slices.Index(logLevels, entry.Level); rank >= 0 && rank < minRank {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func printRunHeader(st tasks.TaskStatus) {
	state := "idle"
	if st.Running {
		state = color.BlueString("running")
	}
	result := st.LastResult
	if st.LastRunFailed() {
		result = color.RedString(result)
	}
	fmt.Println(bold(fmt.Sprintf("── %s ──", st.Name)))
	fmt.Printf("  %s: %s, %d runs (%d failed), last %s %s\n\n", faint("status"),
		state, st.Runs, st.Failures, relativeOrNever(st.LastRun), result)
}

func levelTag(level string) string {
	switch level {
	case "info":
		return color.GreenString("inf")
	case "warn":
		return color.YellowString("wrn")
	case "error":
		return color.RedString("err")
	case "debug":
		return faint("dbg")
	default:
		return level
	}
}

func init() {
	tasksLogsCmd.Flags().StringVarP(&tasksLogsMinLevel, "level", "l", "debug", "only show lines at this level or above")
	tasksCmd.AddCommand(tasksLogsCmd)
}
