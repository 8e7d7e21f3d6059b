package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
)

// OwnedSession is a session joined with its owner's last known role, used by
// the rules engine to apply role exemption without a second lookup.
type OwnedSession struct {
	Session *domain.WorkSession
	Role    domain.Role
}

type SessionRepo interface {
	Create(ctx context.Context, s *domain.WorkSession) error
	GetByID(ctx context.Context, id string) (*domain.WorkSession, error)
	// Update writes s only if the stored version still equals s.Version and
	// bumps s.Version on success. A stale version yields ErrVersionConflict.
	Update(ctx context.Context, s *domain.WorkSession) error
	ListOwnedByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]OwnedSession, error)
	ListRunningStartedBetween(ctx context.Context, from, to time.Time) ([]*domain.WorkSession, error)
	ListByUserDay(ctx context.Context, userID, day string) ([]*domain.WorkSession, error)
}

// ActiveSessionRepo is the one-row-per-user index of running or inactive
// sessions. Its primary key enforces the single-active-session invariant.
type ActiveSessionRepo interface {
	Claim(ctx context.Context, s *domain.WorkSession) error
	GetSessionID(ctx context.Context, userID string) (string, error)
	Release(ctx context.Context, userID, sessionID string) error
}

type ActivityLogRepo interface {
	Create(ctx context.Context, l *domain.ActivityLog) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.ActivityLog, error)
}

type AlertRepo interface {
	Create(ctx context.Context, a *domain.Alert) error
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	ExistsForUserDay(ctx context.Context, userID string, t domain.AlertType, day string) (bool, error)
	ListByOrg(ctx context.Context, orgID string, unreadOnly bool) ([]*domain.Alert, error)
	MarkRead(ctx context.Context, orgID, id string) error
}

type UserRepo interface {
	Upsert(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
