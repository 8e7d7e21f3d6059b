package service

import (
	"context"
	"testing"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/repository"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertService_ListAndMarkRead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	repo := repository.NewSQLiteAlertRepo(h.db)

	first := testutil.NewTestAlert(testutil.NewTestIdentity("u-1"), domain.AlertIdle)
	second := testutil.NewTestAlert(testutil.NewTestIdentity("u-2"), domain.AlertAutoCheckout)
	other := testutil.NewTestAlert(testutil.NewTestIdentity("u-3", testutil.WithOrg("org-other")), domain.AlertIdle)
	for _, a := range []*domain.Alert{first, second, other} {
		require.NoError(t, repo.Create(ctx, a))
	}

	all, err := h.alerts.List(ctx, "org-test", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, h.alerts.MarkRead(ctx, "org-test", first.ID))

	unread, err := h.alerts.List(ctx, "org-test", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, second.ID, unread[0].ID)
}

func TestAlertService_MarkReadScopedToOrganization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := testutil.NewTestAlert(testutil.NewTestIdentity("u-1", testutil.WithOrg("org-other")), domain.AlertIdle)
	require.NoError(t, repository.NewSQLiteAlertRepo(h.db).Create(ctx, a))

	err := h.alerts.MarkRead(ctx, "org-test", a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAlertService_RequiresOrganization(t *testing.T) {
	h := newHarness(t)
	_, err := h.alerts.List(context.Background(), "", false)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, h.alerts.MarkRead(context.Background(), "", "a-1"), domain.ErrValidation)
}
