package service

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/events"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence_ConnectAnnouncesFirstConnectionOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.NewTestIdentity("u-1")

	active, err := h.presence.Connect(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, active, "no session yet")

	_, err = h.presence.Connect(ctx, id)
	require.NoError(t, err)

	online := h.events.Named(events.UserOnline)
	require.Len(t, online, 1)
	assert.Equal(t, events.Organization("org-test"), online[0].To)
	assert.Equal(t, events.PresencePayload{UserID: "u-1", OrganizationID: "org-test"}, online[0].Event.Payload)

	users, err := h.presence.OnlineUsers(ctx, "org-test")
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, users)
}

func TestPresence_ConnectReturnsActiveSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.NewTestIdentity("u-1")
	started := mustStart(t, h, id)

	active, err := h.presence.Connect(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, started.ID, active.ID)
	assert.Equal(t, domain.StatusRunning, active.Status)
}

func TestPresence_ConnectRejectsInvalidIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := h.presence.Connect(context.Background(), domain.Identity{UserID: "u-1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, h.events.All())
}

func TestPresence_DisconnectAnnouncesAfterLastConnection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.NewTestIdentity("u-1")
	_, err := h.presence.Connect(ctx, id)
	require.NoError(t, err)
	_, err = h.presence.Connect(ctx, id)
	require.NoError(t, err)

	require.NoError(t, h.presence.Disconnect(ctx, id))
	assert.Empty(t, h.events.Named(events.UserOffline))
	online, err := h.presence.IsOnline(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, h.presence.Disconnect(ctx, id))
	offline := h.events.Named(events.UserOffline)
	require.Len(t, offline, 1)
	assert.Equal(t, events.Organization("org-test"), offline[0].To)

	online, err = h.presence.IsOnline(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPresence_SweepExpiresStaleUsers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.presence.Connect(ctx, testutil.NewTestIdentity("stale"))
	require.NoError(t, err)
	_, err = h.presence.Connect(ctx, testutil.NewTestIdentity("fresh"))
	require.NoError(t, err)

	h.clock.Advance(4 * time.Minute)
	require.NoError(t, h.presence.Touch(ctx, testutil.NewTestIdentity("fresh")))

	h.clock.Advance(2 * time.Minute)
	n, err := h.presence.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	offline := h.events.Named(events.UserOffline)
	require.Len(t, offline, 1)
	assert.Equal(t, "stale", offline[0].Event.Payload.(events.PresencePayload).UserID)

	users, err := h.presence.OnlineUsers(ctx, "org-test")
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, users)
}

func TestPresence_TouchRestoresSweptUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.NewTestIdentity("u-1")
	_, err := h.presence.Connect(ctx, id)
	require.NoError(t, err)

	h.clock.Advance(6 * time.Minute)
	n, err := h.presence.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	h.events.Reset()

	require.NoError(t, h.presence.Touch(ctx, id))
	online, err := h.presence.IsOnline(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, online)

	back := h.events.Named(events.UserOnline)
	require.Len(t, back, 1)
	assert.Equal(t, events.Organization("org-test"), back[0].To)

	// A refresh of an already online user is silent.
	require.NoError(t, h.presence.Touch(ctx, id))
	assert.Len(t, h.events.Named(events.UserOnline), 1)

	require.NoError(t, h.presence.Disconnect(ctx, id))
	assert.Len(t, h.events.Named(events.UserOffline), 1)
	online, err = h.presence.IsOnline(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, online)
}
