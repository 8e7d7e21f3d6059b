package domain

import "time"

// ActivityLog is the audit row written atomically with every heartbeat
// mutation.
type ActivityLog struct {
	ID             string
	OrganizationID string
	UserID         string
	SessionID      string
	Action         string
	Type           ActivityType
	OccurredAt     time.Time
	CreatedAt      time.Time
}

// ActionPulse labels audit rows written by liveness pings.
const ActionPulse = "pulse"
