package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the realtime server and the rules scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Server == nil || app.Scheduler == nil {
				return errors.New("serve is not configured")
			}
			if addr == "" && app.Config != nil {
				addr = app.Config.Config().HTTPAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, app, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from TEMPO_HTTP_ADDR)")
	return cmd
}

// serve runs every long-lived component until ctx ends or one of them fails.
func serve(ctx context.Context, app *App, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, 3)
	running := 0
	launch := func(name string, fn func(context.Context) error) {
		running++
		go func() { results <- result{name: name, err: fn(ctx)} }()
	}

	launch("http", func(ctx context.Context) error { return app.Server.ListenAndServe(ctx, addr) })
	launch("scheduler", app.Scheduler.Run)
	if app.Config != nil && app.ConfigPath != "" {
		if _, err := os.Stat(app.ConfigPath); err == nil {
			launch("config-watch", func(ctx context.Context) error {
				return app.Config.Watch(ctx, app.ConfigPath, app.Logger)
			})
		}
	}

	var firstErr error
	for i := 0; i < running; i++ {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = r.err
			if app.Logger != nil {
				app.Logger.Error("component failed", "component", r.name, "error", r.err)
			}
		}
		cancel()
	}
	return firstErr
}
