package service

import (
	"context"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
)

// SessionService owns the session lifecycle. Every mutation is a
// compare-and-swap on the session version, retried on conflict, and
// publishes its events only after commit.
type SessionService interface {
	Start(ctx context.Context, id domain.Identity, req StartRequest) (*domain.WorkSession, error)
	RecordActivity(ctx context.Context, id domain.Identity, req ActivityRequest) (*domain.WorkSession, error)
	// Pulse returns nil, nil when the caller has no active session.
	Pulse(ctx context.Context, id domain.Identity) (*domain.WorkSession, error)
	Stop(ctx context.Context, id domain.Identity, sessionID string) (*domain.WorkSession, error)
	LogManual(ctx context.Context, id domain.Identity, req ManualRequest) (*domain.WorkSession, error)
	AutoCheckout(ctx context.Context, sessionID string) (*domain.WorkSession, error)

	GetByID(ctx context.Context, id domain.Identity, sessionID string) (*domain.WorkSession, error)
	// GetActive returns nil, nil when the caller has no active session.
	GetActive(ctx context.Context, id domain.Identity) (*domain.WorkSession, error)
	ListByUserDay(ctx context.Context, id domain.Identity, day string) ([]*domain.WorkSession, error)
	ListActivity(ctx context.Context, id domain.Identity, sessionID string) ([]*domain.ActivityLog, error)
}

// RulesService runs the scheduled idle and overtime scans. Both scans are
// safe to run repeatedly and concurrently.
type RulesService interface {
	CheckIdleSessions(ctx context.Context) (IdleScanReport, error)
	CheckOvertime(ctx context.Context) (OvertimeScanReport, error)
}

type PresenceService interface {
	// Connect marks the user online and returns their active session, if
	// any, for the connecting client to reconcile against.
	Connect(ctx context.Context, id domain.Identity) (*domain.WorkSession, error)
	Disconnect(ctx context.Context, id domain.Identity) error
	// Touch refreshes the caller's presence, restoring it if a sweep
	// expired it while the connection stayed open.
	Touch(ctx context.Context, id domain.Identity) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	OnlineUsers(ctx context.Context, orgID string) ([]string, error)
	// Sweep expires users not seen within the presence TTL.
	Sweep(ctx context.Context) (int, error)
}

type AlertService interface {
	List(ctx context.Context, orgID string, unreadOnly bool) ([]*domain.Alert, error)
	MarkRead(ctx context.Context, orgID, alertID string) error
}

// PolicySource supplies the thresholds in force. Implementations may swap
// the policy at runtime.
type PolicySource interface {
	Policy() domain.Policy
}

// StaticPolicy is a PolicySource that never changes.
type StaticPolicy domain.Policy

func (p StaticPolicy) Policy() domain.Policy { return domain.Policy(p) }

type StartRequest struct {
	ProjectID   *string
	Task        string
	Description string
}

type ActivityRequest struct {
	SessionID string
	Type      domain.ActivityType
	Action    string
	// OccurredAt defaults to now when zero.
	OccurredAt time.Time
}

type ManualRequest struct {
	ProjectID   *string
	Task        string
	Description string
	StartTime   time.Time
	EndTime     time.Time
}

// IdleScanReport summarizes one CheckIdleSessions pass.
type IdleScanReport struct {
	Scanned     int
	Exempt      int
	Demoted     int
	AutoStopped int
	Failed      int
}

// OvertimeScanReport summarizes one CheckOvertime pass.
type OvertimeScanReport struct {
	Users          int
	OverThreshold  int
	Alerted        int
	AlreadyAlerted int
	Failed         int
}
