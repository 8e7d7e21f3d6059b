package cli

import (
	"fmt"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newAlertsCmd(app *App, ident *identityFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Review alerts raised for your organization",
	}
	cmd.AddCommand(newAlertsListCmd(app, ident), newAlertsReadCmd(app, ident))
	return cmd
}

func newAlertsListCmd(app *App, ident *identityFlags) *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			alerts, err := app.Alerts.List(cmd.Context(), id.OrganizationID, unread)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatAlerts(alerts, app.clk().Now()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread alerts")
	return cmd
}

func newAlertsReadCmd(app *App, ident *identityFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read ALERT_ID",
		Short: "Mark an alert as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			if err := app.Alerts.MarkRead(cmd.Context(), id.OrganizationID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked alert %s read\n", args[0])
			return nil
		},
	}
}
