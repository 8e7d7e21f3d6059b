package cli

import (
	"fmt"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newRulesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Run the idle and overtime rules once",
	}
	cmd.AddCommand(newRulesIdleCmd(app), newRulesOvertimeCmd(app))
	return cmd
}

func newRulesIdleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "idle",
		Short: "Demote idle sessions and auto-checkout abandoned ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.Rules.CheckIdleSessions(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Scanned", fmt.Sprint(report.Scanned)},
				{"Exempt", fmt.Sprint(report.Exempt)},
				{"Demoted", fmt.Sprint(report.Demoted)},
				{"Auto-stopped", fmt.Sprint(report.AutoStopped)},
				{"Failed", failedCell(report.Failed)},
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderBox("Idle scan", formatter.RenderTable([]string{"RESULT", "COUNT"}, rows)))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func newRulesOvertimeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "overtime",
		Short: "Raise today's overtime alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.Rules.CheckOvertime(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Users", fmt.Sprint(report.Users)},
				{"Over threshold", fmt.Sprint(report.OverThreshold)},
				{"Alerted", fmt.Sprint(report.Alerted)},
				{"Already alerted", fmt.Sprint(report.AlreadyAlerted)},
				{"Failed", failedCell(report.Failed)},
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderBox("Overtime scan", formatter.RenderTable([]string{"RESULT", "COUNT"}, rows)))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func failedCell(n int) string {
	if n > 0 {
		return formatter.StyleRed.Render(fmt.Sprint(n))
	}
	return fmt.Sprint(n)
}
