package domain

import "time"

// Alert is a write-once notice raised by the rules engine.
type Alert struct {
	ID             string
	OrganizationID string
	UserID         string
	SessionID      *string
	Type           AlertType
	Severity       Severity
	Message        string
	Day            string
	IsRead         bool
	CreatedAt      time.Time
}
