// Package events defines the notifications the core emits after committed
// state changes and the in-process hub that fans them out to observers.
package events

import (
	"context"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
)

type Name string

const (
	SessionStart      Name = "SESSION_START"
	SessionTick       Name = "SESSION_TICK"
	SessionStop       Name = "SESSION_STOP"
	SessionSync       Name = "SESSION_SYNC"
	AdminNotification Name = "ADMIN_NOTIFICATION"
	InactiveAlert     Name = "INACTIVE_ALERT"
	OvertimeAlert     Name = "OVERTIME_ALERT"
	UserOnline        Name = "USER_ONLINE"
	UserOffline       Name = "USER_OFFLINE"
)

type AudienceKind string

const (
	KindOrganization AudienceKind = "organization"
	KindUser         AudienceKind = "user"
)

// Audience addresses either every observer of an organization or every
// connection of one user.
type Audience struct {
	Kind AudienceKind
	ID   string
}

func Organization(id string) Audience { return Audience{Kind: KindOrganization, ID: id} }

func User(id string) Audience { return Audience{Kind: KindUser, ID: id} }

func (a Audience) String() string { return string(a.Kind) + ":" + a.ID }

// Event is one notification. SessionID and Version, when set, order
// successive updates of the same session for a given observer.
type Event struct {
	Name      Name
	SessionID string
	Version   int64
	At        time.Time
	Payload   any
}

// Publisher delivers events to an audience. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, to Audience, ev Event) error
}

// SessionSnapshot is the wire view of a session.
type SessionSnapshot struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	ProjectID      *string    `json:"project_id,omitempty"`
	Task           string     `json:"task"`
	Description    string     `json:"description,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Date           string     `json:"date"`
	Duration       int64      `json:"duration"`
	ActiveSeconds  int64      `json:"active_seconds"`
	IdleSeconds    int64      `json:"idle_seconds"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	Status         string     `json:"status"`
	Version        int64      `json:"version"`
	IsManual       bool       `json:"is_manual"`
}

// Snapshot copies s into its wire view.
func Snapshot(s *domain.WorkSession) SessionSnapshot {
	return SessionSnapshot{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		UserID:         s.UserID,
		ProjectID:      s.ProjectID,
		Task:           s.Task,
		Description:    s.Description,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		Date:           s.Date,
		Duration:       s.Duration,
		ActiveSeconds:  s.ActiveSeconds,
		IdleSeconds:    s.IdleSeconds,
		LastActivityAt: s.LastActivityAt,
		Status:         string(s.Status),
		Version:        s.Version,
		IsManual:       s.IsManual,
	}
}

type SessionStartPayload struct {
	UserID  string          `json:"user_id"`
	Session SessionSnapshot `json:"session"`
}

type SessionTickPayload struct {
	UserID        string     `json:"user_id"`
	SessionID     string     `json:"session_id"`
	Duration      int64      `json:"duration"`
	ActiveSeconds int64      `json:"active_seconds"`
	IdleSeconds   int64      `json:"idle_seconds"`
	LastActivity  *time.Time `json:"last_activity,omitempty"`
	Status        string     `json:"status,omitempty"`
	Productivity  *float64   `json:"productivity,omitempty"`
}

// Tick builds a SESSION_TICK payload from s.
func Tick(s *domain.WorkSession) SessionTickPayload {
	return SessionTickPayload{
		UserID:        s.UserID,
		SessionID:     s.ID,
		Duration:      s.Duration,
		ActiveSeconds: s.ActiveSeconds,
		IdleSeconds:   s.IdleSeconds,
		LastActivity:  s.LastActivityAt,
	}
}

type SessionStopPayload struct {
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	Session   *SessionSnapshot `json:"session,omitempty"`
}

type AdminNotificationPayload struct {
	Type    string `json:"type"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type AlertPayload struct {
	AlertID   string  `json:"alert_id"`
	Type      string  `json:"type"`
	Severity  string  `json:"severity"`
	UserID    string  `json:"user_id"`
	SessionID *string `json:"session_id,omitempty"`
	Message   string  `json:"message"`
}

// Alert builds the payload shared by alert notifications.
func Alert(a *domain.Alert) AlertPayload {
	return AlertPayload{
		AlertID:   a.ID,
		Type:      string(a.Type),
		Severity:  string(a.Severity),
		UserID:    a.UserID,
		SessionID: a.SessionID,
		Message:   a.Message,
	}
}

type PresencePayload struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// SessionSyncPayload carries the active session a connecting client should
// reconcile against. Session is nil when the user has none.
type SessionSyncPayload struct {
	Session *SessionSnapshot `json:"session"`
}

// Sync builds the SESSION_SYNC event for a connecting client.
func Sync(s *domain.WorkSession, at time.Time) Event {
	ev := Event{Name: SessionSync, At: at, Payload: SessionSyncPayload{}}
	if s != nil {
		snap := Snapshot(s)
		ev.SessionID = s.ID
		ev.Version = s.Version
		ev.Payload = SessionSyncPayload{Session: &snap}
	}
	return ev
}
