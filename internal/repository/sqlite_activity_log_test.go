package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityLogRepo_CreateAndList(t *testing.T) {
	database := testutil.NewTestDB(t)
	sessions := NewSQLiteSessionRepo(database)
	logs := NewSQLiteActivityLogRepo(database)
	ctx := context.Background()

	id := testutil.NewTestIdentity("u-1")
	s := testutil.NewTestSession(id)
	require.NoError(t, sessions.Create(ctx, s))

	for i, typ := range []domain.ActivityType{domain.ActivityActive, domain.ActivityIdle} {
		at := testutil.Epoch.Add(time.Duration(i+1) * time.Minute)
		require.NoError(t, logs.Create(ctx, &domain.ActivityLog{
			ID: uuid.New().String(), OrganizationID: id.OrganizationID, UserID: id.UserID,
			SessionID: s.ID, Action: "typing", Type: typ, OccurredAt: at, CreatedAt: at,
		}))
	}

	list, err := logs.ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.ActivityActive, list[0].Type)
	assert.Equal(t, domain.ActivityIdle, list[1].Type)
	assert.Equal(t, "typing", list[0].Action)
}

func TestActivityLogRepo_RequiresSession(t *testing.T) {
	logs := NewSQLiteActivityLogRepo(testutil.NewTestDB(t))

	err := logs.Create(context.Background(), &domain.ActivityLog{
		ID: uuid.New().String(), OrganizationID: "o", UserID: "u", SessionID: "missing",
		Type: domain.ActivityActive, OccurredAt: testutil.Epoch, CreatedAt: testutil.Epoch,
	})
	assert.Error(t, err, "foreign key to work_sessions must be enforced")
}
