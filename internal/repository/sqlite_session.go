package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
)

// SQLiteSessionRepo implements SessionRepo using a SQLite database.
type SQLiteSessionRepo struct {
	db db.DBTX
}

// NewSQLiteSessionRepo creates a new SQLiteSessionRepo.
func NewSQLiteSessionRepo(conn db.DBTX) *SQLiteSessionRepo {
	return &SQLiteSessionRepo{db: conn}
}

const sessionColumns = `s.id, s.organization_id, s.user_id, s.project_id, s.task, s.description,
	s.start_time, s.end_time, s.date, s.duration, s.active_seconds, s.idle_seconds,
	s.last_activity_at, s.status, s.version, s.is_manual, s.created_at, s.updated_at`

func (r *SQLiteSessionRepo) Create(ctx context.Context, s *domain.WorkSession) error {
	query := `INSERT INTO work_sessions (id, organization_id, user_id, project_id, task, description,
		start_time, end_time, date, duration, active_seconds, idle_seconds,
		last_activity_at, status, version, is_manual, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.OrganizationID,
		s.UserID,
		nullableString(s.ProjectID),
		s.Task,
		s.Description,
		formatTime(s.StartTime),
		nullableTimeToString(s.EndTime),
		s.Date,
		s.Duration,
		s.ActiveSeconds,
		s.IdleSeconds,
		nullableTimeToString(s.LastActivityAt),
		string(s.Status),
		s.Version,
		boolToInt(s.IsManual),
		formatTime(s.CreatedAt),
		formatTime(s.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting work session %s: %w", s.ID, ErrConflict)
		}
		return fmt.Errorf("inserting work session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepo) GetByID(ctx context.Context, id string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions s WHERE s.id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound("work session", err)
	}
	return s, nil
}

func (r *SQLiteSessionRepo) Update(ctx context.Context, s *domain.WorkSession) error {
	query := `UPDATE work_sessions SET
		end_time = ?, duration = ?, active_seconds = ?, idle_seconds = ?,
		last_activity_at = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query,
		nullableTimeToString(s.EndTime),
		s.Duration,
		s.ActiveSeconds,
		s.IdleSeconds,
		nullableTimeToString(s.LastActivityAt),
		string(s.Status),
		formatTime(s.UpdatedAt),
		s.ID,
		s.Version,
	)
	if err != nil {
		return fmt.Errorf("updating work session %s: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of work session %s: %w", s.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("work session %s at version %d: %w", s.ID, s.Version, domain.ErrVersionConflict)
	}
	s.Version++
	return nil
}

func (r *SQLiteSessionRepo) ListOwnedByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]OwnedSession, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	query := `SELECT ` + sessionColumns + `, COALESCE(u.role, 'employee')
		FROM work_sessions s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.status IN (` + placeholders(len(statuses)) + `)
		ORDER BY s.start_time`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions by status: %w", err)
	}
	defer rows.Close()

	var out []OwnedSession
	for rows.Next() {
		var role string
		s, err := scanSession(rows, &role)
		if err != nil {
			return nil, fmt.Errorf("scanning owned session row: %w", err)
		}
		out = append(out, OwnedSession{Session: s, Role: domain.Role(role)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating owned sessions: %w", err)
	}
	return out, nil
}

func (r *SQLiteSessionRepo) ListRunningStartedBetween(ctx context.Context, from, to time.Time) ([]*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions s
		WHERE s.status = ? AND s.start_time >= ? AND s.start_time < ?
		ORDER BY s.user_id, s.start_time`
	rows, err := r.db.QueryContext(ctx, query, string(domain.StatusRunning), formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("listing running sessions in window: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (r *SQLiteSessionRepo) ListByUserDay(ctx context.Context, userID, day string) ([]*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions s
		WHERE s.user_id = ? AND s.date = ?
		ORDER BY s.start_time`
	rows, err := r.db.QueryContext(ctx, query, userID, day)
	if err != nil {
		return nil, fmt.Errorf("listing sessions by user day: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession scans the session columns followed by any extra destinations.
func scanSession(row rowScanner, extra ...any) (*domain.WorkSession, error) {
	var s domain.WorkSession
	var projectID, endTime, lastActivity sql.NullString
	var startStr, createdStr, updatedStr, status string
	var isManual int

	dest := []any{
		&s.ID, &s.OrganizationID, &s.UserID, &projectID, &s.Task, &s.Description,
		&startStr, &endTime, &s.Date, &s.Duration, &s.ActiveSeconds, &s.IdleSeconds,
		&lastActivity, &status, &s.Version, &isManual, &createdStr, &updatedStr,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	s.ProjectID = stringFromNull(projectID)
	s.Status = domain.SessionStatus(status)
	s.IsManual = isManual != 0

	var err error
	if s.StartTime, err = parseTime("start_time", startStr); err != nil {
		return nil, err
	}
	if s.EndTime, err = parseNullableTime("end_time", endTime); err != nil {
		return nil, err
	}
	if s.LastActivityAt, err = parseNullableTime("last_activity_at", lastActivity); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime("created_at", createdStr); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime("updated_at", updatedStr); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSessions(rows *sql.Rows) ([]*domain.WorkSession, error) {
	var sessions []*domain.WorkSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}
