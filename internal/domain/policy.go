package domain

import (
	"fmt"
	"time"
)

// Policy holds the thresholds that drive heartbeat apportionment and the
// idle/overtime rules.
type Policy struct {
	// MaxActivityGap caps the seconds a single RecordActivity call may add.
	MaxActivityGap time.Duration
	// ContinuousThreshold is the longest pulse gap still counted as fully active.
	ContinuousThreshold time.Duration
	// PingInterval is the active share of a pulse gap past ContinuousThreshold.
	PingInterval time.Duration

	IdleTimeout       time.Duration
	AutoCheckoutAfter time.Duration
	OvertimeThreshold time.Duration

	MaxWriteRetries int
	ExemptRoles     []Role

	// Location buckets sessions into calendar days.
	Location *time.Location
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaxActivityGap:      300 * time.Second,
		ContinuousThreshold: 60 * time.Second,
		PingInterval:        30 * time.Second,
		IdleTimeout:         5 * time.Minute,
		AutoCheckoutAfter:   2 * time.Hour,
		OvertimeThreshold:   9 * time.Hour,
		MaxWriteRetries:     5,
		ExemptRoles:         []Role{RoleAdmin},
		Location:            time.UTC,
	}
}

// IsExemptFromIdlePolicy reports whether presence of the given role always
// counts as fully productive. It is the only place role exemption is decided.
func (p Policy) IsExemptFromIdlePolicy(role Role) bool {
	for _, r := range p.ExemptRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Validate rejects threshold combinations the algorithms cannot honor.
func (p Policy) Validate() error {
	switch {
	case p.MaxActivityGap < 0:
		return &ValidationError{Field: "max_activity_gap", Reason: "must not be negative"}
	case p.PingInterval <= 0:
		return &ValidationError{Field: "ping_interval", Reason: "must be positive"}
	case p.ContinuousThreshold < p.PingInterval:
		return &ValidationError{Field: "continuous_threshold", Reason: fmt.Sprintf("must be at least ping_interval (%s)", p.PingInterval)}
	case p.IdleTimeout <= 0:
		return &ValidationError{Field: "idle_timeout", Reason: "must be positive"}
	case p.AutoCheckoutAfter <= p.IdleTimeout:
		return &ValidationError{Field: "auto_checkout_after", Reason: "must exceed idle_timeout"}
	case p.OvertimeThreshold <= 0:
		return &ValidationError{Field: "overtime_threshold", Reason: "must be positive"}
	case p.MaxWriteRetries < 1:
		return &ValidationError{Field: "max_write_retries", Reason: "must be at least 1"}
	}
	return nil
}

// Loc returns the bucketing location, defaulting to UTC.
func (p Policy) Loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// DayOf returns the YYYY-MM-DD calendar bucket of t in the policy location.
func (p Policy) DayOf(t time.Time) string {
	return t.In(p.Loc()).Format(DayLayout)
}

// DayBounds returns the [start, end) instants of the calendar day containing t.
func (p Policy) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(p.Loc())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.Loc())
	return start, start.AddDate(0, 0, 1)
}

// DayLayout is the calendar-day bucket format.
const DayLayout = "2006-01-02"

// ReportedProductivity is the productivity shown in reports. Exempt roles
// report full productivity once any time has been tracked.
func (p Policy) ReportedProductivity(s *WorkSession, role Role) float64 {
	if s.Duration > 0 && p.IsExemptFromIdlePolicy(role) {
		return 100
	}
	return s.Productivity()
}
