package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// tempoHuhTheme returns a huh theme using the formatter palette.
func tempoHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.ErrorMessage = lipgloss.NewStyle().Foreground(formatter.ColorRed)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

// manualLogForm prompts for the fields of a manual entry. Existing values
// are shown as defaults.
func manualLogForm(start, end, task, project *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			whenInput("Start", start),
			whenInput("End", end),
			huh.NewInput().
				Title("Task").
				Placeholder("What did you work on?").
				Value(task),
			huh.NewInput().
				Title("Project ID").
				Description("Blank for none").
				Value(project),
		),
	).WithTheme(tempoHuhTheme()).WithShowHelp(false)
}

func whenInput(title string, value *string) *huh.Input {
	return huh.NewInput().
		Title(title).
		Placeholder(time.Now().Format("2006-01-02 15:04")).
		Value(value).
		Validate(validateWhen)
}

func validateWhen(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	_, err := parseWhen(s, time.Local)
	return err
}
