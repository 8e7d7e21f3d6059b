package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two heartbeats at t and t+5s racing on one session must both land.
func TestRecordActivity_ConcurrentHeartbeatsNoLostUpdate(t *testing.T) {
	h := newHarness(t, withDB(testutil.NewFileTestDB(t)))
	ctx := context.Background()
	id := testutil.NewTestIdentity("u-1")
	s := mustStart(t, h, id)

	tBase := testutil.Epoch.Add(10 * time.Second)
	var wg sync.WaitGroup
	for _, at := range []time.Time{tBase, tBase.Add(5 * time.Second)} {
		wg.Add(1)
		go func(at time.Time) {
			defer wg.Done()
			_, err := h.sessions.RecordActivity(ctx, id, ActivityRequest{SessionID: s.ID, Type: domain.ActivityActive, OccurredAt: at})
			assert.NoError(t, err)
		}(at)
	}
	wg.Wait()

	stored, err := h.sessions.GetByID(ctx, id, s.ID)
	require.NoError(t, err)
	// Either serial order yields 15s: 10 then 5, or 15 then a late 0.
	assert.Equal(t, int64(15), stored.Duration)
	assert.Equal(t, int64(15), stored.ActiveSeconds)
	assert.Equal(t, int64(3), stored.Version)

	logs, err := h.sessions.ListActivity(ctx, id, s.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestRecordActivity_ManyConcurrentHeartbeats(t *testing.T) {
	h := newHarness(t, withDB(testutil.NewFileTestDB(t)))
	ctx := context.Background()
	id := testutil.NewTestIdentity("u-1")
	s := mustStart(t, h, id)

	const n = 12
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.sessions.RecordActivity(ctx, id, ActivityRequest{
				SessionID: s.ID, Type: domain.ActivityActive,
				OccurredAt: testutil.Epoch.Add(time.Duration(i) * time.Second),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := h.sessions.GetByID(ctx, id, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stored.Duration, "gaps telescope to the latest heartbeat")
	assert.Equal(t, int64(n+1), stored.Version)
}

func TestStart_ConcurrentStartsYieldOneActiveSession(t *testing.T) {
	h := newHarness(t, withDB(testutil.NewFileTestDB(t)))
	ctx := context.Background()
	id := testutil.NewTestIdentity("u-1")

	const n = 6
	var ok, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.sessions.Start(ctx, id, StartRequest{})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
}

func TestRecordActivity_RollbackOnAuditFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	setup := newHarness(t, withDB(database))
	id := testutil.NewTestIdentity("u-1")
	s := mustStart(t, setup, id)

	// ExecContext #1 = sessions.Update, #2 = activity log insert.
	failUoW := &testutil.FailOnNthExecUoW{DB: database, FailOn: 2, Err: errors.New("injected audit failure")}
	h := newHarness(t, withDB(database), withUoW(failUoW))
	ctx := context.Background()

	_, err := h.sessions.RecordActivity(ctx, id, ActivityRequest{
		SessionID: s.ID, Type: domain.ActivityActive, OccurredAt: testutil.Epoch.Add(30 * time.Second),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected audit failure")

	stored, err := h.sessions.GetByID(ctx, id, s.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Duration, "counters unchanged after rollback")
	assert.Equal(t, int64(1), stored.Version)

	logs, err := h.sessions.ListActivity(ctx, id, s.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, h.events.All(), "no events for a rolled-back mutation")
}

func TestStop_RollbackKeepsActiveSlot(t *testing.T) {
	database := testutil.NewTestDB(t)
	setup := newHarness(t, withDB(database))
	id := testutil.NewTestIdentity("u-1")
	s := mustStart(t, setup, id)

	// ExecContext #1 = sessions.Update, #2 = active slot release.
	failUoW := &testutil.FailOnNthExecUoW{DB: database, FailOn: 2, Err: errors.New("injected release failure")}
	h := newHarness(t, withDB(database), withUoW(failUoW))
	ctx := context.Background()

	_, err := h.sessions.Stop(ctx, id, s.ID)
	require.Error(t, err)

	active, err := h.sessions.GetActive(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, domain.StatusRunning, active.Status)
}

// interferingUoW bumps the session version between the read and the
// compare-and-swap for the first `times` writes, simulating a concurrent
// writer that always wins.
type interferingUoW struct {
	db    *sql.DB
	times int32
	count atomic.Int32
}

func (u *interferingUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return db.NewSQLiteUnitOfWork(u.db).WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &interferingTx{DBTX: tx, uow: u})
	})
}

type interferingTx struct {
	db.DBTX
	uow *interferingUoW
}

func (t *interferingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if strings.HasPrefix(strings.TrimSpace(query), "UPDATE work_sessions SET") && t.uow.count.Add(1) <= t.uow.times {
		id := args[len(args)-2]
		if _, err := t.DBTX.ExecContext(ctx, `UPDATE work_sessions SET version = version + 1 WHERE id = ?`, id); err != nil {
			return nil, err
		}
	}
	return t.DBTX.ExecContext(ctx, query, args...)
}

func TestRecordActivity_RetriesVersionConflicts(t *testing.T) {
	database := testutil.NewTestDB(t)
	setup := newHarness(t, withDB(database))
	id := testutil.NewTestIdentity("u-1")
	s := mustStart(t, setup, id)

	uow := &interferingUoW{db: database, times: 2}
	h := newHarness(t, withDB(database), withUoW(uow))

	got, err := h.sessions.RecordActivity(context.Background(), id, ActivityRequest{
		SessionID: s.ID, Type: domain.ActivityActive, OccurredAt: testutil.Epoch.Add(20 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Duration)
	assert.Equal(t, int32(3), uow.count.Load(), "two lost attempts then a winning one")
}

func TestRecordActivity_RetryExhausted(t *testing.T) {
	database := testutil.NewTestDB(t)
	setup := newHarness(t, withDB(database))
	id := testutil.NewTestIdentity("u-1")
	s := mustStart(t, setup, id)

	uow := &interferingUoW{db: database, times: 1000}
	h := newHarness(t, withDB(database), withUoW(uow))

	_, err := h.sessions.RecordActivity(context.Background(), id, ActivityRequest{
		SessionID: s.ID, Type: domain.ActivityActive, OccurredAt: testutil.Epoch.Add(20 * time.Second),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetryExhausted)
	assert.Equal(t, int32(domain.DefaultPolicy().MaxWriteRetries), uow.count.Load())

	stored, err := h.sessions.GetByID(context.Background(), id, s.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Duration)
	assert.Empty(t, h.events.All())
}
