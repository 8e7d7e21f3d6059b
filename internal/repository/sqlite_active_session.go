package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
)

// SQLiteActiveSessionRepo implements ActiveSessionRepo over the
// active_sessions table.
type SQLiteActiveSessionRepo struct {
	db db.DBTX
}

// NewSQLiteActiveSessionRepo creates a new SQLiteActiveSessionRepo.
func NewSQLiteActiveSessionRepo(conn db.DBTX) *SQLiteActiveSessionRepo {
	return &SQLiteActiveSessionRepo{db: conn}
}

// Claim records s as its owner's active session. A user that already holds
// one gets ErrConflict.
func (r *SQLiteActiveSessionRepo) Claim(ctx context.Context, s *domain.WorkSession) error {
	query := `INSERT INTO active_sessions (user_id, session_id, organization_id, created_at)
		VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.ID, s.OrganizationID, formatTime(s.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s already has an active session: %w", s.UserID, ErrConflict)
		}
		return fmt.Errorf("claiming active session: %w", err)
	}
	return nil
}

func (r *SQLiteActiveSessionRepo) GetSessionID(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT session_id FROM active_sessions WHERE user_id = ?`, userID).Scan(&id)
	if err != nil {
		return "", notFound("active session", err)
	}
	return id, nil
}

// Release clears the index entry only if it still points at sessionID.
func (r *SQLiteActiveSessionRepo) Release(ctx context.Context, userID, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM active_sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("releasing active session: %w", err)
	}
	return nil
}
