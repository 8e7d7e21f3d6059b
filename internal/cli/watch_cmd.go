package cli

import (
	"fmt"
	"time"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/alexanderramin/tempo/internal/realtime"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const watchPingEvery = 30 * time.Second

func newWatchCmd(app *App, ident *identityFlags) *cobra.Command {
	var server string
	var plain bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live session events for your organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ident.identity()
			if err != nil {
				return err
			}
			client, err := realtime.Dial(cmd.Context(), server, id)
			if err != nil {
				return err
			}
			defer client.Close()

			if plain || !app.interactive() {
				return watchPlain(cmd, client)
			}

			title := fmt.Sprintf("tempo watch · %s@%s", id.UserID, id.OrganizationID)
			p := tea.NewProgram(newWatchModel(title, client.Ping, watchPingEvery), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			go func() {
				for {
					msg, err := client.Next()
					if err != nil {
						p.Send(streamErrMsg{err: err})
						return
					}
					p.Send(streamMsg(msg))
				}
			}()

			final, err := p.Run()
			if err != nil {
				return err
			}
			if m, ok := final.(watchModel); ok && m.err != nil && !realtime.IsClosed(m.err) {
				return m.err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print one line per event instead of the live view")
	return cmd
}

// watchPlain prints events until the server closes the stream.
func watchPlain(cmd *cobra.Command, client *realtime.Client) error {
	out := cmd.OutOrStdout()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(watchPingEvery)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if client.Ping() != nil {
					return
				}
			}
		}
	}()

	for {
		msg, err := client.Next()
		if err != nil {
			if realtime.IsClosed(err) {
				return nil
			}
			return err
		}
		if msg.Type == realtime.TypePong {
			continue
		}
		fmt.Fprintln(out, formatter.FormatEventLine(msg.Type, msg.Timestamp, msg.Payload))
	}
}
