package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/service"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *App, ident *identityFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, track and inspect work sessions",
	}

	cmd.AddCommand(
		newSessionStartCmd(app, ident),
		newSessionStopCmd(app, ident),
		newSessionPulseCmd(app, ident),
		newSessionActivityCmd(app, ident),
		newSessionLogCmd(app, ident),
		newSessionShowCmd(app, ident),
		newSessionActiveCmd(app, ident),
		newSessionListCmd(app, ident),
	)
	return cmd
}

func newSessionStartCmd(app *App, ident *identityFlags) *cobra.Command {
	var task, project, description string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			s, err := app.Sessions.Start(cmd.Context(), id, service.StartRequest{
				ProjectID:   domain.OptionalString(project),
				Task:        task,
				Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Started session %s\n", formatter.StyleGreen.Render("▶"), s.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "Task label")
	cmd.Flags().StringVar(&project, "project", "", "Project ID")
	cmd.Flags().StringVar(&description, "description", "", "Free-text description")
	return cmd
}

func newSessionStopCmd(app *App, ident *identityFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [SESSION_ID]",
		Short: "Stop a running session (defaults to the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			sessionID, err := sessionArg(cmd, app, id, args)
			if err != nil {
				return err
			}
			s, err := app.Sessions.Stop(cmd.Context(), id, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Stopped session %s after %s\n",
				formatter.StyleDim.Render("■"), s.ID, formatter.FormatSeconds(s.Duration))
			return nil
		},
	}
}

func newSessionPulseCmd(app *App, ident *identityFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pulse",
		Short: "Send a liveness ping for the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			s, err := app.Sessions.Pulse(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s == nil {
				fmt.Fprintln(out, formatter.Dim("No active session."))
				return nil
			}
			fmt.Fprintf(out, "%s %s  total %s, active %s, idle %s\n", formatter.StatusPill(s.Status), formatter.TruncID(s.ID),
				formatter.FormatSeconds(s.Duration), formatter.FormatSeconds(s.ActiveSeconds), formatter.FormatSeconds(s.IdleSeconds))
			return nil
		},
	}
}

func newSessionActivityCmd(app *App, ident *identityFlags) *cobra.Command {
	var kind, action, at string

	cmd := &cobra.Command{
		Use:   "activity [SESSION_ID]",
		Short: "Record an activity heartbeat (defaults to the active session)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			sessionID, err := sessionArg(cmd, app, id, args)
			if err != nil {
				return err
			}
			activityType, err := domain.ParseActivityType(kind)
			if err != nil {
				return err
			}
			var occurredAt time.Time
			if at != "" {
				if occurredAt, err = parseWhen(at, app.Policy.Policy().Loc()); err != nil {
					return err
				}
			}
			s, err := app.Sessions.RecordActivity(cmd.Context(), id, service.ActivityRequest{
				SessionID:  sessionID,
				Type:       activityType,
				Action:     action,
				OccurredAt: occurredAt,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s activity on %s: total %s\n",
				activityType, formatter.TruncID(s.ID), formatter.FormatSeconds(s.Duration))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "type", string(domain.ActivityActive), "Activity type: active or idle")
	cmd.Flags().StringVar(&action, "action", "", "What the user was doing")
	cmd.Flags().StringVar(&at, "at", "", "When it happened (RFC3339 or YYYY-MM-DD HH:MM; default now)")
	return cmd
}

func newSessionLogCmd(app *App, ident *identityFlags) *cobra.Command {
	var start, end, task, project, description string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a past session manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			if start == "" || end == "" {
				if !app.interactive() {
					return errors.New("--start and --end are required")
				}
				if err := manualLogForm(&start, &end, &task, &project).Run(); err != nil {
					return err
				}
			}

			loc := app.Policy.Policy().Loc()
			startTime, err := parseWhen(start, loc)
			if err != nil {
				return err
			}
			endTime, err := parseWhen(end, loc)
			if err != nil {
				return err
			}
			s, err := app.Sessions.LogManual(cmd.Context(), id, service.ManualRequest{
				ProjectID:   domain.OptionalString(project),
				Task:        task,
				Description: description,
				StartTime:   startTime,
				EndTime:     endTime,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s session %s on %s\n", formatter.FormatSeconds(s.Duration), s.ID, s.Date)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Start time (RFC3339 or YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "End time (RFC3339 or YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&task, "task", "", "Task label")
	cmd.Flags().StringVar(&project, "project", "", "Project ID")
	cmd.Flags().StringVar(&description, "description", "", "Free-text description")
	return cmd
}

func newSessionShowCmd(app *App, ident *identityFlags) *cobra.Command {
	var withActivity bool

	cmd := &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			s, err := app.Sessions.GetByID(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), app, id, s)
			if withActivity {
				logs, err := app.Sessions.ListActivity(cmd.Context(), id, s.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Header("Activity"))
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatActivity(logs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withActivity, "activity", false, "Include the activity log")
	return cmd
}

func newSessionActiveCmd(app *App, ident *identityFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Show the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			s, err := app.Sessions.GetActive(cmd.Context(), id)
			if err != nil {
				return err
			}
			if s == nil {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No active session."))
				return nil
			}
			printSession(cmd.OutOrStdout(), app, id, s)
			return nil
		},
	}
}

func newSessionListCmd(app *App, ident *identityFlags) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			now := app.clk().Now()
			if day == "" {
				day = app.Policy.Policy().DayOf(now)
			}
			sessions, err := app.Sessions.ListByUserDay(cmd.Context(), id, day)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatSessionList("Sessions "+day, sessions, now))
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "Calendar day YYYY-MM-DD (default today)")
	return cmd
}

func printSession(w io.Writer, app *App, id domain.Identity, s *domain.WorkSession) {
	productivity := app.Policy.Policy().ReportedProductivity(s, id.EffectiveRole())
	fmt.Fprintln(w, formatter.FormatSession(s, productivity, app.clk().Now()))
}

// sessionArg returns the explicit session ID or the caller's active one.
func sessionArg(cmd *cobra.Command, app *App, id domain.Identity, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	active, err := app.Sessions.GetActive(cmd.Context(), id)
	if err != nil {
		return "", err
	}
	if active == nil {
		return "", errors.New("no active session; pass a SESSION_ID")
	}
	return active.ID, nil
}

var whenLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02 15:04:05"}

// parseWhen accepts RFC3339 or a local wall-clock time in loc.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &domain.ValidationError{Field: "time", Reason: fmt.Sprintf("cannot parse %q; use RFC3339 or YYYY-MM-DD HH:MM", s)}
}
