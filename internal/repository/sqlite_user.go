package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
)

// SQLiteUserRepo records the last identity seen for each user.
type SQLiteUserRepo struct {
	db db.DBTX
}

func NewSQLiteUserRepo(conn db.DBTX) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: conn}
}

func (r *SQLiteUserRepo) Upsert(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (id, organization_id, role, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organization_id = excluded.organization_id,
			role = excluded.role,
			last_seen_at = excluded.last_seen_at`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.OrganizationID, string(u.Role), formatTime(u.LastSeenAt))
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

func (r *SQLiteUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	var role, seenStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, role, last_seen_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.OrganizationID, &role, &seenStr)
	if err != nil {
		return nil, notFound("user", err)
	}
	u.Role = domain.Role(role)
	if u.LastSeenAt, err = parseTime("last_seen_at", seenStr); err != nil {
		return nil, err
	}
	return &u, nil
}
