package testutil

import (
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/google/uuid"
)

// Epoch is the fixed instant fixtures and manual clocks start from.
var Epoch = time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)

// Identity options
type IdentityOption func(*domain.Identity)

func WithRole(r domain.Role) IdentityOption {
	return func(id *domain.Identity) {
		id.Role = r
	}
}

func WithOrg(orgID string) IdentityOption {
	return func(id *domain.Identity) {
		id.OrganizationID = orgID
	}
}

// NewTestIdentity returns an employee identity in org-test.
func NewTestIdentity(userID string, opts ...IdentityOption) domain.Identity {
	id := domain.Identity{UserID: userID, OrganizationID: "org-test", Role: domain.RoleEmployee}
	for _, opt := range opts {
		opt(&id)
	}
	return id
}

// Session options
type SessionOption func(*domain.WorkSession)

func WithStartTime(t time.Time) SessionOption {
	return func(s *domain.WorkSession) {
		s.StartTime = t
		s.CreatedAt = t
		s.UpdatedAt = t
		s.Date = t.UTC().Format(domain.DayLayout)
	}
}

func WithLastActivity(t time.Time) SessionOption {
	return func(s *domain.WorkSession) {
		s.LastActivityAt = &t
	}
}

func WithStatus(st domain.SessionStatus) SessionOption {
	return func(s *domain.WorkSession) {
		s.Status = st
	}
}

func WithCounters(active, idle int64) SessionOption {
	return func(s *domain.WorkSession) {
		s.ActiveSeconds = active
		s.IdleSeconds = idle
		s.Duration = active + idle
	}
}

func WithProject(projectID string) SessionOption {
	return func(s *domain.WorkSession) {
		s.ProjectID = &projectID
	}
}

// NewTestSession returns a running session owned by id, started at Epoch.
func NewTestSession(id domain.Identity, opts ...SessionOption) *domain.WorkSession {
	s := domain.NewSession(uuid.New().String(), id, nil, "test task", "", Epoch, domain.DefaultPolicy())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTestAlert returns an unread alert of type t for id on the Epoch day.
func NewTestAlert(id domain.Identity, t domain.AlertType) *domain.Alert {
	return &domain.Alert{
		ID:             uuid.New().String(),
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		Type:           t,
		Severity:       domain.SeverityMedium,
		Message:        "test alert",
		Day:            Epoch.Format(domain.DayLayout),
		CreatedAt:      Epoch,
	}
}
