package domain

import (
	"fmt"
	"time"
)

// WorkSession is one interval of tracked work for one user.
type WorkSession struct {
	ID             string
	OrganizationID string
	UserID         string

	ProjectID   *string
	Task        string
	Description string

	StartTime time.Time
	EndTime   *time.Time
	Date      string

	// Accumulators, in whole seconds.
	Duration      int64
	ActiveSeconds int64
	IdleSeconds   int64

	LastActivityAt *time.Time
	Status         SessionStatus
	Version        int64
	IsManual       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession builds a running session owned by id, started at now.
func NewSession(sessionID string, id Identity, projectID *string, task, description string, now time.Time, p Policy) *WorkSession {
	return &WorkSession{
		ID:             sessionID,
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		ProjectID:      projectID,
		Task:           task,
		Description:    description,
		StartTime:      now,
		Date:           p.DayOf(now),
		Status:         StatusRunning,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewManualSession builds a retroactive entry. It is stopped on creation and
// its whole span counts as active.
func NewManualSession(sessionID string, id Identity, projectID *string, task, description string, start, end, now time.Time, p Policy) (*WorkSession, error) {
	if !end.After(start) {
		return nil, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	duration := wholeSeconds(end.Sub(start))
	endCopy := end
	return &WorkSession{
		ID:             sessionID,
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		ProjectID:      projectID,
		Task:           task,
		Description:    description,
		StartTime:      start,
		EndTime:        &endCopy,
		Date:           p.DayOf(start),
		Duration:       duration,
		ActiveSeconds:  duration,
		Status:         StatusStopped,
		Version:        1,
		IsManual:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Reference is the instant the next heartbeat gap is measured from.
func (s *WorkSession) Reference() time.Time {
	if s.LastActivityAt != nil {
		return *s.LastActivityAt
	}
	return s.StartTime
}

// IdleFor returns how long the session has gone without a heartbeat.
func (s *WorkSession) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.Reference())
}

// IsTerminal reports whether the session can no longer change.
func (s *WorkSession) IsTerminal() bool {
	return s.Status == StatusStopped
}

// Productivity is the active share of duration as a percentage.
func (s *WorkSession) Productivity() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.ActiveSeconds) / float64(s.Duration) * 100
}

// ApplyActivity attributes the gap since the reference instant to either the
// active or the idle counter. The gap is clamped to [0, maxGap]. Returns the
// seconds added.
func (s *WorkSession) ApplyActivity(kind ActivityType, occurredAt, now time.Time, maxGap time.Duration) (int64, error) {
	if s.Status != StatusRunning {
		return 0, fmt.Errorf("recording activity on %s session %s: %w", s.Status, s.ID, ErrInvalidState)
	}
	if _, err := ParseActivityType(string(kind)); err != nil {
		return 0, err
	}

	ref := s.Reference()
	gap := ClampGap(occurredAt.Sub(ref), maxGap)
	s.Duration += gap
	if kind == ActivityActive {
		s.ActiveSeconds += gap
	} else {
		s.IdleSeconds += gap
	}
	// A late heartbeat never moves the reference backwards.
	last := LaterOf(ref, occurredAt)
	s.LastActivityAt = &last
	s.UpdatedAt = now
	return gap, nil
}

// PulseResult describes how one pulse gap was apportioned.
type PulseResult struct {
	Gap     int64
	Active  int64
	Idle    int64
	Revived bool
}

// ApplyPulse folds a liveness ping into the counters. The gap is not capped;
// past the continuous threshold only one ping interval counts as active
// unless exempt is set. A pulse revives an inactive session.
func (s *WorkSession) ApplyPulse(now time.Time, exempt bool, p Policy) (PulseResult, error) {
	if !s.Status.IsActive() {
		return PulseResult{}, fmt.Errorf("pulsing %s session %s: %w", s.Status, s.ID, ErrInvalidState)
	}

	ref := s.Reference()
	gap := wholeSeconds(now.Sub(ref))
	if gap < 0 {
		gap = 0
	}
	active, idle := SplitPulseGap(gap, exempt, p)

	res := PulseResult{Gap: gap, Active: active, Idle: idle, Revived: s.Status == StatusInactive}
	s.Duration += gap
	s.ActiveSeconds += active
	s.IdleSeconds += idle
	last := LaterOf(ref, now)
	s.LastActivityAt = &last
	s.Status = StatusRunning
	s.UpdatedAt = now
	return res, nil
}

// MarkInactive demotes a running session after an idle timeout.
func (s *WorkSession) MarkInactive(now time.Time) error {
	if s.Status != StatusRunning {
		return fmt.Errorf("demoting %s session %s: %w", s.Status, s.ID, ErrInvalidState)
	}
	s.Status = StatusInactive
	s.UpdatedAt = now
	return nil
}

// Stop finalizes a running session on explicit user request.
func (s *WorkSession) Stop(now time.Time) error {
	if s.Status != StatusRunning {
		return fmt.Errorf("stopping %s session %s: %w", s.Status, s.ID, ErrInvalidState)
	}
	s.finalize(now)
	return nil
}

// AutoCheckout finalizes an abandoned running or inactive session.
func (s *WorkSession) AutoCheckout(now time.Time) error {
	if !s.Status.IsActive() {
		return fmt.Errorf("auto-checkout of %s session %s: %w", s.Status, s.ID, ErrInvalidState)
	}
	s.finalize(now)
	return nil
}

// finalize reconciles duration to the wall-clock span. Active and idle
// counters keep their heartbeat-accumulated values.
func (s *WorkSession) finalize(now time.Time) {
	end := now
	s.EndTime = &end
	s.Status = StatusStopped
	s.Duration = wholeSeconds(end.Sub(s.StartTime))
	if s.Duration < 0 {
		s.Duration = 0
	}
	s.UpdatedAt = now
}

// ClampGap converts d to whole seconds bounded to [0, max].
func ClampGap(d, max time.Duration) int64 {
	secs := wholeSeconds(d)
	if secs < 0 {
		return 0
	}
	if limit := wholeSeconds(max); secs > limit {
		return limit
	}
	return secs
}

// SplitPulseGap apportions a pulse gap into active and idle seconds.
func SplitPulseGap(gap int64, exempt bool, p Policy) (active, idle int64) {
	if gap <= 0 {
		return 0, 0
	}
	if exempt || gap <= wholeSeconds(p.ContinuousThreshold) {
		return gap, 0
	}
	ping := wholeSeconds(p.PingInterval)
	if ping > gap {
		ping = gap
	}
	return ping, gap - ping
}

func wholeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
