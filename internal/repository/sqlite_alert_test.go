package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertRepo_CreateAndGet(t *testing.T) {
	repo := NewSQLiteAlertRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	a := testutil.NewTestAlert(testutil.NewTestIdentity("u-1"), domain.AlertIdle)
	sid := "s-1"
	a.SessionID = &sid
	require.NoError(t, repo.Create(ctx, a))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertIdle, got.Type)
	assert.Equal(t, domain.SeverityMedium, got.Severity)
	require.NotNil(t, got.SessionID)
	assert.Equal(t, "s-1", *got.SessionID)
	assert.False(t, got.IsRead)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAlertRepo_OvertimeOncePerDay(t *testing.T) {
	repo := NewSQLiteAlertRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	id := testutil.NewTestIdentity("u-1")

	exists, err := repo.ExistsForUserDay(ctx, "u-1", domain.AlertOvertime, "2025-06-16")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Create(ctx, testutil.NewTestAlert(id, domain.AlertOvertime)))
	exists, err = repo.ExistsForUserDay(ctx, "u-1", domain.AlertOvertime, "2025-06-16")
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.Create(ctx, testutil.NewTestAlert(id, domain.AlertOvertime))
	assert.ErrorIs(t, err, ErrConflict)

	// Idle alerts are not limited.
	require.NoError(t, repo.Create(ctx, testutil.NewTestAlert(id, domain.AlertIdle)))
	require.NoError(t, repo.Create(ctx, testutil.NewTestAlert(id, domain.AlertIdle)))
}

func TestAlertRepo_ListByOrgAndMarkRead(t *testing.T) {
	repo := NewSQLiteAlertRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	id := testutil.NewTestIdentity("u-1")
	older := testutil.NewTestAlert(id, domain.AlertIdle)
	newer := testutil.NewTestAlert(id, domain.AlertAutoCheckout)
	newer.CreatedAt = older.CreatedAt.Add(time.Minute)
	foreign := testutil.NewTestAlert(testutil.NewTestIdentity("u-9", testutil.WithOrg("org-other")), domain.AlertIdle)
	for _, a := range []*domain.Alert{older, newer, foreign} {
		require.NoError(t, repo.Create(ctx, a))
	}

	all, err := repo.ListByOrg(ctx, "org-test", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "newest first")

	require.NoError(t, repo.MarkRead(ctx, "org-test", newer.ID))
	unread, err := repo.ListByOrg(ctx, "org-test", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, older.ID, unread[0].ID)

	assert.ErrorIs(t, repo.MarkRead(ctx, "org-test", foreign.ID), ErrNotFound)
}
