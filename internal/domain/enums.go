package domain

import "fmt"

type SessionStatus string

const (
	StatusRunning  SessionStatus = "running"
	StatusInactive SessionStatus = "inactive"
	StatusStopped  SessionStatus = "stopped"
)

// IsActive reports whether the session still occupies the user's single
// active slot.
func (s SessionStatus) IsActive() bool {
	return s == StatusRunning || s == StatusInactive
}

type ActivityType string

const (
	ActivityActive ActivityType = "active"
	ActivityIdle   ActivityType = "idle"
)

// ParseActivityType validates a client-supplied activity classification.
func ParseActivityType(s string) (ActivityType, error) {
	switch ActivityType(s) {
	case ActivityActive, ActivityIdle:
		return ActivityType(s), nil
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("must be %q or %q, got %q", ActivityActive, ActivityIdle, s)}
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// ValidRoles is the canonical set of accepted role strings.
var ValidRoles = map[string]bool{
	"admin": true, "manager": true, "employee": true,
}

type AlertType string

const (
	AlertIdle         AlertType = "idle"
	AlertOvertime     AlertType = "overtime"
	AlertAutoCheckout AlertType = "auto_checkout"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)
