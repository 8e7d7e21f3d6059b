package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/alexanderramin/tempo/internal/realtime"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxWatchLines bounds the scrollback kept by the watch view.
const maxWatchLines = 500

type (
	streamMsg    realtime.Message
	streamErrMsg struct{ err error }
	pingTickMsg  struct{}
)

type watchKeys struct {
	Quit key.Binding
	Top  key.Binding
	End  key.Binding
}

func defaultWatchKeys() watchKeys {
	return watchKeys{
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
		Top:  key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		End:  key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "follow")),
	}
}

// watchModel is a live, scrollable feed of the events streamed to one
// identity.
type watchModel struct {
	title   string
	keys    watchKeys
	spin    spinner.Model
	vp      viewport.Model
	lines   []string
	ready   bool
	follow  bool
	err     error
	ping    func() error
	pingDue time.Duration
}

func newWatchModel(title string, ping func() error, pingEvery time.Duration) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = formatter.StyleHeader

	vp := viewport.New(80, 20)
	vp.KeyMap = viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		Up:           key.NewBinding(key.WithKeys("up", "k")),
		Down:         key.NewBinding(key.WithKeys("down", "j")),
	}

	return watchModel{
		title:   title,
		keys:    defaultWatchKeys(),
		spin:    sp,
		vp:      vp,
		follow:  true,
		ping:    ping,
		pingDue: pingEvery,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.schedulePing())
}

func (m watchModel) schedulePing() tea.Cmd {
	if m.ping == nil || m.pingDue <= 0 {
		return nil
	}
	return tea.Tick(m.pingDue, func(time.Time) tea.Msg { return pingTickMsg{} })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.vp.Width = msg.Width
		m.vp.Height = max(msg.Height-4, 3)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Top):
			m.follow = false
			m.vp.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.End):
			m.follow = true
			m.vp.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		m.follow = m.vp.AtBottom()
		return m, cmd

	case streamMsg:
		m.ready = true
		m.append(formatter.FormatEventLine(msg.Type, msg.Timestamp, msg.Payload))
		return m, nil

	case streamErrMsg:
		m.err = msg.err
		return m, tea.Quit

	case pingTickMsg:
		if err := m.ping(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		return m, m.schedulePing()

	case spinner.TickMsg:
		if m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *watchModel) append(line string) {
	m.lines = append(m.lines, line)
	if over := len(m.lines) - maxWatchLines; over > 0 {
		m.lines = m.lines[over:]
	}
	m.refresh()
}

func (m *watchModel) refresh() {
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	if m.follow {
		m.vp.GotoBottom()
	}
}

func (m watchModel) View() string {
	header := formatter.StyleHeader.Render(strings.ToUpper(m.title))
	var body string
	if !m.ready {
		body = fmt.Sprintf("%s %s", m.spin.View(), formatter.Dim("waiting for events..."))
	} else {
		body = m.vp.View()
	}
	sep := lipgloss.NewStyle().Foreground(formatter.ColorDim).Render(strings.Repeat("─", max(m.vp.Width, 20)))
	hints := formatter.Dim(fmt.Sprintf("q: quit  g/G: top/follow  %d events", len(m.lines)))
	return header + "\n" + body + "\n" + sep + "\n" + hints
}
