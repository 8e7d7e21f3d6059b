package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
)

// SQLiteActivityLogRepo implements ActivityLogRepo.
type SQLiteActivityLogRepo struct {
	db db.DBTX
}

func NewSQLiteActivityLogRepo(conn db.DBTX) *SQLiteActivityLogRepo {
	return &SQLiteActivityLogRepo{db: conn}
}

func (r *SQLiteActivityLogRepo) Create(ctx context.Context, l *domain.ActivityLog) error {
	query := `INSERT INTO activity_logs (id, organization_id, user_id, session_id, action, type, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.OrganizationID, l.UserID, l.SessionID, l.Action, string(l.Type),
		formatTime(l.OccurredAt), formatTime(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting activity log: %w", err)
	}
	return nil
}

func (r *SQLiteActivityLogRepo) ListBySession(ctx context.Context, sessionID string) ([]*domain.ActivityLog, error) {
	query := `SELECT id, organization_id, user_id, session_id, action, type, occurred_at, created_at
		FROM activity_logs WHERE session_id = ? ORDER BY created_at, occurred_at`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing activity logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ActivityLog
	for rows.Next() {
		var l domain.ActivityLog
		var typ, occurredStr, createdStr string
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.UserID, &l.SessionID, &l.Action, &typ, &occurredStr, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning activity log row: %w", err)
		}
		l.Type = domain.ActivityType(typ)
		if l.OccurredAt, err = parseTime("occurred_at", occurredStr); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = parseTime("created_at", createdStr); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity logs: %w", err)
	}
	return logs, nil
}
