package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
)

// SQLiteAlertRepo implements AlertRepo. Overtime alerts are unique per
// (user, day) through a partial index; a duplicate insert yields ErrConflict.
type SQLiteAlertRepo struct {
	db db.DBTX
}

func NewSQLiteAlertRepo(conn db.DBTX) *SQLiteAlertRepo {
	return &SQLiteAlertRepo{db: conn}
}

const alertColumns = `id, organization_id, user_id, session_id, type, severity, message, day, is_read, created_at`

func (r *SQLiteAlertRepo) Create(ctx context.Context, a *domain.Alert) error {
	query := `INSERT INTO alerts (` + alertColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.OrganizationID, a.UserID, nullableString(a.SessionID),
		string(a.Type), string(a.Severity), a.Message, a.Day,
		boolToInt(a.IsRead), formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s alert for user %s on %s: %w", a.Type, a.UserID, a.Day, ErrConflict)
		}
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

func (r *SQLiteAlertRepo) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if err != nil {
		return nil, notFound("alert", err)
	}
	return a, nil
}

func (r *SQLiteAlertRepo) ExistsForUserDay(ctx context.Context, userID string, t domain.AlertType, day string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM alerts WHERE user_id = ? AND type = ? AND day = ?`,
		userID, string(t), day).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s alert for %s: %w", t, userID, err)
	}
	return n > 0, nil
}

func (r *SQLiteAlertRepo) ListByOrg(ctx context.Context, orgID string, unreadOnly bool) ([]*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE organization_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, nil
}

// MarkRead flags an alert as read. Alerts of other organizations are
// reported as not found.
func (r *SQLiteAlertRepo) MarkRead(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET is_read = 1 WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return fmt.Errorf("marking alert read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking alert read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var a domain.Alert
	var sessionID sql.NullString
	var typ, severity, createdStr string
	var isRead int
	if err := row.Scan(&a.ID, &a.OrganizationID, &a.UserID, &sessionID, &typ, &severity,
		&a.Message, &a.Day, &isRead, &createdStr); err != nil {
		return nil, err
	}
	a.SessionID = stringFromNull(sessionID)
	a.Type = domain.AlertType(typ)
	a.Severity = domain.Severity(severity)
	a.IsRead = isRead != 0
	var err error
	if a.CreatedAt, err = parseTime("created_at", createdStr); err != nil {
		return nil, err
	}
	return &a, nil
}
