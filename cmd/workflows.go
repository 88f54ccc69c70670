package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/api"
	"github.com/darmiel/lastword/internal/core"
	"github.com/darmiel/lastword/pkg/client"
)

var (
	workflowsIdentity string
	workflowsStates   []string
	workflowsLimit    uint

	startSender    string
	startToken     string
	startSignature string
)

var workflowsCmd = &cobra.Command{
	Use:     "workflows",
	Aliases: []string{"wf"},
	Short:   "Inspect and cancel countdowns",
	Long:    `Manage countdown workflows on the server. Requires an authenticated session (lastword login).`,
}

var workflowsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List countdowns",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		instances, correlation, err := cli.ListWorkflows(cmd.Context(), client.ListWorkflowsOpts{
			Identity: workflowsIdentity,
			States:   workflowsStates,
			Limit:    workflowsLimit,
		})
		if err != nil {
			return logError(err, correlation, "failed to list workflows")
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Identity", "State", "Origin", "Resume", "Attempt", "Created"})
		for _, inst := range instances {
			t.AppendRow(table.Row{
				inst.ID,
				inst.Identity,
				colorState(inst.State),
				inst.Origin,
				formatResume(inst),
				inst.Attempt,
				inst.CreatedAt.Local().Format(time.DateTime),
			})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var workflowsGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a single countdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		inst, correlation, err := cli.GetWorkflow(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to get workflow")
		}
		printInstance(inst)
		return nil
	},
}

var workflowsCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a countdown before its content is released",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		res, correlation, err := cli.CancelWorkflow(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to cancel workflow")
		}
		if !res.Changed {
			return logError(fmt.Errorf("instance is %s", res.Instance.State), correlation,
				"countdown could not be cancelled anymore")
		}
		logSuccess("cancelled countdown %s of %s", bold(res.Instance.ID), res.Instance.Identity)
		return nil
	},
}

var workflowsStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a countdown the way the message router does",
	Example: `  lastword workflows start --sender alice@example.com --signature lwi_3f2a...
  lastword workflows start --sender alice@example.com --token lw1....`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		res, correlation, err := cli.StartWorkflow(cmd.Context(), api.StartWorkflowPayload{
			Sender:    startSender,
			Token:     startToken,
			Signature: startSignature,
		})
		if err != nil {
			return logError(err, correlation, "failed to start countdown")
		}
		if res.Created {
			logSuccess("started countdown %s via %s", bold(res.Instance.ID), res.Origin)
		} else {
			logSuccess("countdown %s is already active", bold(res.Instance.ID))
		}
		return nil
	},
}

func colorState(s core.State) string {
	switch s {
	case core.StateCompleted:
		return color.GreenString(string(s))
	case core.StateFailed:
		return color.RedString(string(s))
	case core.StateCancelled:
		return color.New(color.Faint).Sprint(string(s))
	case core.StateSleeping:
		return color.CyanString(string(s))
	case core.StateReleasing:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func formatResume(inst *core.Instance) string {
	if inst.State.IsTerminal() || inst.ResumeAt.IsZero() {
		return "-"
	}
	if d := time.Until(inst.ResumeAt); d > 0 {
		return "in " + d.Round(time.Second).String()
	}
	return "due"
}

func printInstance(inst *core.Instance) {
	fmt.Println(bold("\n── Countdown " + inst.ID + " ──"))
	rows := [][2]string{
		{"Identity", inst.Identity},
		{"Domain", inst.Domain},
		{"Origin", inst.Origin},
		{"State", colorState(inst.State)},
		{"Resume", formatResume(inst)},
		{"Attempt", fmt.Sprint(inst.Attempt)},
		{"Created", inst.CreatedAt.Local().Format(time.RFC3339)},
	}
	if !inst.SleepUntil.IsZero() {
		rows = append(rows, [2]string{"Release at", inst.SleepUntil.Local().Format(time.RFC3339)})
	}
	if inst.NotifiedAt != nil {
		rows = append(rows, [2]string{"Notified", inst.NotifiedAt.Local().Format(time.RFC3339)})
	}
	if inst.ReleasedAt != nil {
		rows = append(rows, [2]string{"Released", inst.ReleasedAt.Local().Format(time.RFC3339)})
	}
	if inst.LastError != "" {
		rows = append(rows, [2]string{"Last error", color.RedString(inst.LastError)})
	}
	for _, row := range rows {
		fmt.Printf("  %s %s\n", faint(row[0]+":"+strings.Repeat(" ", 11-len(row[0]))), row[1])
	}
}

func init() {
	rootCmd.AddCommand(workflowsCmd)
	workflowsCmd.AddCommand(workflowsListCmd, workflowsGetCmd, workflowsCancelCmd, workflowsStartCmd)

	workflowsListCmd.Flags().StringVar(&workflowsIdentity, "identity", "", "Only show countdowns of this requester")
	workflowsListCmd.Flags().StringSliceVar(&workflowsStates, "state", nil, "Only show countdowns in these states")
	workflowsListCmd.Flags().UintVarP(&workflowsLimit, "limit", "n", 50, "Maximum number of countdowns")

	workflowsStartCmd.Flags().StringVar(&startSender, "sender", "", "Address of the requester")
	workflowsStartCmd.Flags().StringVar(&startToken, "token", "", "Trigger token")
	workflowsStartCmd.Flags().StringVar(&startSignature, "signature", "", "Invitation signature")
	_ = workflowsStartCmd.MarkFlagRequired("sender")
	workflowsStartCmd.MarkFlagsOneRequired("token", "signature")
}
