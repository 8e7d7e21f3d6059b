package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startRunner runs r in the background and returns a stop func that cancels
// and waits for Run to return.
func startRunner(t *testing.T, r *Runner) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("runner did not stop")
		}
	}
}

func TestRunner_RunsImmediatelyThenOnTicks(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(nil, Job{Name: "count", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
		calls.Add(1)
		return nil
	}})
	stop := startRunner(t, r)
	defer stop()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunner_FirstRunIsImmediate(t *testing.T) {
	ran := make(chan struct{}, 1)
	r := NewRunner(nil, Job{Name: "slow-cadence", Interval: time.Hour, Run: func(context.Context) error {
		ran <- struct{}{}
		return nil
	}})
	stop := startRunner(t, r)
	defer stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestRunner_SkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	var running, maxRunning atomic.Int32
	r := NewRunner(nil, Job{Name: "blocking", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}})
	stop := startRunner(t, r)

	require.Eventually(t, func() bool { return r.Skipped("blocking") >= 3 }, 2*time.Second, 5*time.Millisecond)
	close(release)
	stop()
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestRunner_JobErrorsDoNotStopScheduling(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(nil, Job{Name: "flaky", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}})
	stop := startRunner(t, r)
	defer stop()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunner_RecoversPanics(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(nil, Job{Name: "panicky", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		calls.Add(1)
		panic("boom")
	}})
	stop := startRunner(t, r)
	defer stop()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunner_RejectsNonPositiveInterval(t *testing.T) {
	r := NewRunner(nil, Job{Name: "bad", Run: func(context.Context) error { return nil }})
	assert.Error(t, r.Run(context.Background()))
}

type fakeRules struct {
	mu       sync.Mutex
	idle     int
	overtime int
}

func (f *fakeRules) CheckIdleSessions(context.Context) (service.IdleScanReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle++
	return service.IdleScanReport{Scanned: 2, Demoted: 1}, nil
}

func (f *fakeRules) CheckOvertime(context.Context) (service.OvertimeScanReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overtime++
	return service.OvertimeScanReport{}, errors.New("db down")
}

func TestRulesJobs(t *testing.T) {
	rules := &fakeRules{}
	ctx := context.Background()

	idle := IdleScanJob(rules, time.Minute, nil)
	assert.Equal(t, "idle-scan", idle.Name)
	assert.NoError(t, idle.Run(ctx))

	overtime := OvertimeScanJob(rules, time.Hour, nil)
	assert.Equal(t, time.Hour, overtime.Interval)
	assert.EqualError(t, overtime.Run(ctx), "db down")

	assert.Equal(t, 1, rules.idle)
	assert.Equal(t, 1, rules.overtime)
}

func TestPresenceSweepJob_HalfTTL(t *testing.T) {
	job := PresenceSweepJob(nil, 10*time.Minute)
	assert.Equal(t, 5*time.Minute, job.Interval)
	assert.Equal(t, time.Minute, PresenceSweepJob(nil, 0).Interval)
}
