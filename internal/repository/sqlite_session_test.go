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

func TestSessionRepo_CreateAndGetByID(t *testing.T) {
	repo := NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	id := testutil.NewTestIdentity("u-1")
	sess := testutil.NewTestSession(id, testutil.WithProject("p-1"), testutil.WithCounters(20, 10),
		testutil.WithLastActivity(testutil.Epoch.Add(30*time.Second)))
	require.NoError(t, repo.Create(ctx, sess))

	fetched, err := repo.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, fetched.ID)
	assert.Equal(t, "org-test", fetched.OrganizationID)
	assert.Equal(t, "u-1", fetched.UserID)
	require.NotNil(t, fetched.ProjectID)
	assert.Equal(t, "p-1", *fetched.ProjectID)
	assert.Equal(t, domain.StatusRunning, fetched.Status)
	assert.Equal(t, int64(30), fetched.Duration)
	assert.Equal(t, int64(20), fetched.ActiveSeconds)
	assert.Equal(t, int64(10), fetched.IdleSeconds)
	assert.True(t, fetched.StartTime.Equal(testutil.Epoch))
	require.NotNil(t, fetched.LastActivityAt)
	assert.True(t, fetched.LastActivityAt.Equal(testutil.Epoch.Add(30*time.Second)))
	assert.Nil(t, fetched.EndTime)
	assert.Equal(t, int64(1), fetched.Version)
	assert.False(t, fetched.IsManual)
}

func TestSessionRepo_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteSessionRepo(testutil.NewTestDB(t))

	_, err := repo.GetByID(context.Background(), "nonexistent")
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepo_CreateDuplicateID(t *testing.T) {
	repo := NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	sess := testutil.NewTestSession(testutil.NewTestIdentity("u-1"))
	require.NoError(t, repo.Create(ctx, sess))
	assert.ErrorIs(t, repo.Create(ctx, sess), ErrConflict)
}

func TestSessionRepo_PreservesSubsecondPrecision(t *testing.T) {
	repo := NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	start := testutil.Epoch.Add(123456789 * time.Nanosecond)
	sess := testutil.NewTestSession(testutil.NewTestIdentity("u-1"), testutil.WithStartTime(start))
	require.NoError(t, repo.Create(ctx, sess))

	fetched, err := repo.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, fetched.StartTime.Equal(start))
}

func TestSessionRepo_UpdateBumpsVersion(t *testing.T) {
	repo := NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	sess := testutil.NewTestSession(testutil.NewTestIdentity("u-1"))
	require.NoError(t, repo.Create(ctx, sess))

	require.NoError(t, sess.Stop(testutil.Epoch.Add(time.Hour)))
	require.NoError(t, repo.Update(ctx, sess))
	assert.Equal(t, int64(2), sess.Version)

	fetched, err := repo.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, fetched.Status)
	assert.Equal(t, int64(3600), fetched.Duration)
	assert.Equal(t, int64(2), fetched.Version)
	require.NotNil(t, fetched.EndTime)
	assert.True(t, fetched.EndTime.Equal(testutil.Epoch.Add(time.Hour)))
}

func TestSessionRepo_UpdateStaleVersion(t *testing.T) {
	repo := NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	sess := testutil.NewTestSession(testutil.NewTestIdentity("u-1"))
	require.NoError(t, repo.Create(ctx, sess))

	first, err := repo.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, sess.ID)
	require.NoError(t, err)

	first.Duration, first.ActiveSeconds = 10, 10
	require.NoError(t, repo.Update(ctx, first))

	second.Duration, second.IdleSeconds = 99, 99
	err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, int64(1), second.Version, "version must not move on conflict")

	fetched, err := repo.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), fetched.Duration)
}

func TestSessionRepo_ListOwnedByStatus(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteSessionRepo(database)
	users := NewSQLiteUserRepo(database)
	ctx := context.Background()

	admin := testutil.NewTestIdentity("admin-1", testutil.WithRole(domain.RoleAdmin))
	require.NoError(t, users.Upsert(ctx, &domain.User{ID: admin.UserID, OrganizationID: admin.OrganizationID, Role: admin.Role, LastSeenAt: testutil.Epoch}))

	running := testutil.NewTestSession(admin)
	inactive := testutil.NewTestSession(testutil.NewTestIdentity("u-2"), testutil.WithStatus(domain.StatusInactive))
	stopped := testutil.NewTestSession(testutil.NewTestIdentity("u-3"), testutil.WithStatus(domain.StatusStopped))
	for _, s := range []*domain.WorkSession{running, inactive, stopped} {
		require.NoError(t, repo.Create(ctx, s))
	}

	owned, err := repo.ListOwnedByStatus(ctx, domain.StatusRunning, domain.StatusInactive)
	require.NoError(t, err)
	require.Len(t, owned, 2)

	roles := map[string]domain.Role{}
	for _, o := range owned {
		roles[o.Session.ID] = o.Role
	}
	assert.Equal(t, domain.RoleAdmin, roles[running.ID])
	assert.Equal(t, domain.RoleEmployee, roles[inactive.ID], "unknown users default to employee")

	none, err := repo.ListOwnedByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSessionRepo_ListRunningStartedBetween(t *testing.T) {
	repo := NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	dayStart := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	today := testutil.NewTestSession(testutil.NewTestIdentity("u-1"), testutil.WithStartTime(dayStart.Add(8*time.Hour)))
	yesterday := testutil.NewTestSession(testutil.NewTestIdentity("u-2"), testutil.WithStartTime(dayStart.Add(-time.Hour)))
	stoppedToday := testutil.NewTestSession(testutil.NewTestIdentity("u-3"),
		testutil.WithStartTime(dayStart.Add(time.Hour)), testutil.WithStatus(domain.StatusStopped))
	for _, s := range []*domain.WorkSession{today, yesterday, stoppedToday} {
		require.NoError(t, repo.Create(ctx, s))
	}

	list, err := repo.ListRunningStartedBetween(ctx, dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, today.ID, list[0].ID)
}

func TestSessionRepo_ListByUserDay(t *testing.T) {
	repo := NewSQLiteSessionRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	id := testutil.NewTestIdentity("u-1")
	s1 := testutil.NewTestSession(id, testutil.WithStartTime(testutil.Epoch.Add(2*time.Hour)), testutil.WithStatus(domain.StatusStopped))
	s2 := testutil.NewTestSession(id, testutil.WithStartTime(testutil.Epoch))
	other := testutil.NewTestSession(testutil.NewTestIdentity("u-2"))
	for _, s := range []*domain.WorkSession{s1, s2, other} {
		require.NoError(t, repo.Create(ctx, s))
	}

	list, err := repo.ListByUserDay(ctx, "u-1", "2025-06-16")
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Ordered by start_time.
	assert.Equal(t, s2.ID, list[0].ID)
	assert.Equal(t, s1.ID, list[1].ID)
}
