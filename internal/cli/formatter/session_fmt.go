package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
)

// FormatSession renders one session as a detail box. productivity is the
// reported percentage for the owner's role.
func FormatSession(s *domain.WorkSession, productivity float64, now time.Time) string {
	var b strings.Builder
	field := func(label, value string) {
		b.WriteString(fmt.Sprintf("%s  %s\n", StyleDim.Render(fmt.Sprintf("%-13s", label)), value))
	}

	field("Status", StatusPill(s.Status))
	if s.Task != "" {
		field("Task", Bold(s.Task))
	}
	if s.ProjectID != nil {
		field("Project", *s.ProjectID)
	}
	if s.Description != "" {
		field("Description", s.Description)
	}
	field("Started", s.StartTime.Format("2006-01-02 15:04:05")+"  "+Dim(HumanTimestampFrom(s.StartTime, now)))
	if s.EndTime != nil {
		field("Ended", s.EndTime.Format("2006-01-02 15:04:05"))
	}
	if s.LastActivityAt != nil {
		field("Last activity", HumanTimestampFrom(*s.LastActivityAt, now))
	}
	field("Duration", FormatSeconds(s.Duration))
	field("Active", FormatSeconds(s.ActiveSeconds))
	field("Idle", FormatSeconds(s.IdleSeconds))
	field("Productivity", RenderProductivity(productivity/100, 20))
	if s.IsManual {
		field("Source", StylePurple.Render("manual entry"))
	}
	field("Version", fmt.Sprintf("%d", s.Version))

	return RenderBox("Session "+shortID(s.ID), strings.TrimRight(b.String(), "\n"))
}

// FormatSessionList renders sessions as a table with a day total.
func FormatSessionList(title string, sessions []*domain.WorkSession, now time.Time) string {
	if len(sessions) == 0 {
		return Dim("No sessions found.") + "\n"
	}

	headers := []string{"ID", "STATUS", "TASK", "STARTED", "DURATION", "ACTIVE", "IDLE"}
	rows := make([][]string, 0, len(sessions))
	var total int64
	for _, s := range sessions {
		total += s.Duration
		task := Truncate(s.Task, 32)
		if s.IsManual {
			task += Dim(" (manual)")
		}
		rows = append(rows, []string{
			TruncID(s.ID),
			StatusPill(s.Status),
			task,
			HumanTimestampFrom(s.StartTime, now),
			FormatSeconds(s.Duration),
			StyleGreen.Render(FormatSeconds(s.ActiveSeconds)),
			StyleYellow.Render(FormatSeconds(s.IdleSeconds)),
		})
	}
	footer := fmt.Sprintf("\n%s %s", Dim("Total:"), Bold(FormatSeconds(total)))
	return RenderBox(title, RenderTable(headers, rows)+footer)
}

// FormatActivity renders a session's audit trail.
func FormatActivity(logs []*domain.ActivityLog) string {
	if len(logs) == 0 {
		return Dim("No activity recorded.") + "\n"
	}
	headers := []string{"OCCURRED", "TYPE", "ACTION"}
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		kind := StyleGreen.Render(string(l.Type))
		if l.Type == domain.ActivityIdle {
			kind = StyleYellow.Render(string(l.Type))
		}
		rows = append(rows, []string{
			l.OccurredAt.Format("15:04:05"),
			kind,
			Truncate(l.Action, 48),
		})
	}
	return RenderTable(headers, rows)
}

// FormatAlerts renders alerts newest first as returned by the store.
func FormatAlerts(alerts []*domain.Alert, now time.Time) string {
	if len(alerts) == 0 {
		return Dim("No alerts.") + "\n"
	}
	headers := []string{"ID", "SEVERITY", "TYPE", "USER", "WHEN", "MESSAGE"}
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		marker := ""
		if !a.IsRead {
			marker = StyleBlue.Render("• ")
		}
		rows = append(rows, []string{
			marker + TruncID(a.ID),
			SeverityBadge(a.Severity),
			string(a.Type),
			a.UserID,
			HumanTimestampFrom(a.CreatedAt, now),
			Truncate(a.Message, 60),
		})
	}
	return RenderBox("Alerts", RenderTable(headers, rows))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
