package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alexanderramin/tempo/internal/clock"
	"github.com/alexanderramin/tempo/internal/config"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/realtime"
	"github.com/alexanderramin/tempo/internal/scheduler"
	"github.com/alexanderramin/tempo/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// App holds the services and long-running components CLI commands use.
type App struct {
	Sessions service.SessionService
	Rules    service.RulesService
	Alerts   service.AlertService
	Policy   service.PolicySource
	Clock    clock.Clock

	// Used by serve only.
	Server     *realtime.Server
	Scheduler  *scheduler.Runner
	Config     *config.Live
	ConfigPath string
	Logger     *slog.Logger

	// IsInteractive reports whether commands may prompt.
	IsInteractive func() bool
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) clk() clock.Clock {
	if a.Clock == nil {
		return clock.System{}
	}
	return a.Clock
}

// NewRootCmd creates the top-level "tempo" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	ident := &identityFlags{}
	root := &cobra.Command{
		Use:           "tempo",
		Short:         "Work session tracking with idle and overtime rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddFlagSet(ident.flagSet())

	root.AddCommand(
		newServeCmd(app),
		newSessionCmd(app, ident),
		newRulesCmd(app),
		newAlertsCmd(app, ident),
		newWatchCmd(app, ident),
	)
	return root
}

// identityFlags carry the caller identity the auth layer would supply.
type identityFlags struct {
	user string
	org  string
	role string
}

func (f *identityFlags) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("identity", pflag.ContinueOnError)
	fs.StringVar(&f.user, "user", os.Getenv("TEMPO_USER"), "acting user ID (env TEMPO_USER)")
	fs.StringVar(&f.org, "org", os.Getenv("TEMPO_ORG"), "acting organization ID (env TEMPO_ORG)")
	fs.StringVar(&f.role, "role", envOr("TEMPO_ROLE", string(domain.RoleEmployee)), "acting role: admin, manager or employee (env TEMPO_ROLE)")
	return fs
}

func (f *identityFlags) identity() (domain.Identity, error) {
	id := domain.Identity{UserID: f.user, OrganizationID: f.org, Role: domain.Role(f.role)}
	if err := id.Validate(); err != nil {
		return domain.Identity{}, fmt.Errorf("identity: %w (set --user and --org)", err)
	}
	return id, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
