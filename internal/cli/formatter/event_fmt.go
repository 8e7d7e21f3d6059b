package formatter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/events"
	"github.com/charmbracelet/lipgloss"
)

// FormatEventLine renders one streamed event as a single log line. Unknown
// payload shapes fall back to the raw JSON.
func FormatEventLine(name string, at time.Time, payload json.RawMessage) string {
	stamp := Dim(at.Local().Format("15:04:05"))
	label := eventStyle(events.Name(name)).Render(fmt.Sprintf("%-18s", name))
	return fmt.Sprintf("%s %s %s", stamp, label, describeEvent(events.Name(name), payload))
}

func eventStyle(name events.Name) lipgloss.Style {
	switch name {
	case events.SessionStart, events.UserOnline:
		return StyleGreen
	case events.SessionStop, events.UserOffline:
		return StyleDim
	case events.InactiveAlert, events.AdminNotification:
		return StyleYellow
	case events.OvertimeAlert:
		return StyleRed
	default:
		return StyleBlue
	}
}

func describeEvent(name events.Name, payload json.RawMessage) string {
	switch name {
	case events.SessionSync:
		var p events.SessionSyncPayload
		if json.Unmarshal(payload, &p) == nil {
			if p.Session == nil {
				return "no active session"
			}
			return fmt.Sprintf("%s %s %s", shortID(p.Session.ID), p.Session.Status, FormatSeconds(p.Session.Duration))
		}
	case events.SessionStart:
		var p events.SessionStartPayload
		if json.Unmarshal(payload, &p) == nil {
			return fmt.Sprintf("%s started %s %q", p.UserID, shortID(p.Session.ID), p.Session.Task)
		}
	case events.SessionTick:
		var p events.SessionTickPayload
		if json.Unmarshal(payload, &p) == nil {
			line := fmt.Sprintf("%s %s total %s, active %s, idle %s", p.UserID, shortID(p.SessionID),
				FormatSeconds(p.Duration), FormatSeconds(p.ActiveSeconds), FormatSeconds(p.IdleSeconds))
			if p.Status != "" {
				line += " [" + p.Status + "]"
			}
			return line
		}
	case events.SessionStop:
		var p events.SessionStopPayload
		if json.Unmarshal(payload, &p) == nil {
			if p.Session != nil {
				return fmt.Sprintf("%s stopped %s after %s", p.UserID, shortID(p.SessionID), FormatSeconds(p.Session.Duration))
			}
			return fmt.Sprintf("%s stopped %s", p.UserID, shortID(p.SessionID))
		}
	case events.AdminNotification:
		var p events.AdminNotificationPayload
		if json.Unmarshal(payload, &p) == nil {
			return fmt.Sprintf("%s %s: %s", p.Type, p.UserID, p.Message)
		}
	case events.InactiveAlert, events.OvertimeAlert:
		var p events.AlertPayload
		if json.Unmarshal(payload, &p) == nil {
			return fmt.Sprintf("%s %s", SeverityLabel(p.Severity), p.Message)
		}
	case events.UserOnline, events.UserOffline:
		var p events.PresencePayload
		if json.Unmarshal(payload, &p) == nil {
			return p.UserID
		}
	}
	return string(payload)
}

// SeverityLabel upper-cases a wire severity.
func SeverityLabel(sev string) string {
	return "[" + strings.ToUpper(sev) + "]"
}
