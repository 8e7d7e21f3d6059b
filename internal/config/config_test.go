package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TEMPO_DB", "/tmp/tempo-defaults.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tempo-defaults.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.IdleScanInterval)
	assert.Equal(t, time.Hour, cfg.OvertimeScanInterval)
	assert.Equal(t, domain.DefaultPolicy(), cfg.Policy)
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.env")
	writeEnv(t, path, `
TEMPO_DB=/var/lib/tempo.db
TEMPO_IDLE_TIMEOUT=10m
TEMPO_AUTO_CHECKOUT_AFTER=3h
TEMPO_OVERTIME_THRESHOLD=8h
TEMPO_EXEMPT_ROLES=admin, manager
TEMPO_TIMEZONE=Europe/Berlin
TEMPO_MAX_WRITE_RETRIES=7
TEMPO_LOG_FORMAT=json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tempo.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Minute, cfg.Policy.IdleTimeout)
	assert.Equal(t, 3*time.Hour, cfg.Policy.AutoCheckoutAfter)
	assert.Equal(t, 8*time.Hour, cfg.Policy.OvertimeThreshold)
	assert.Equal(t, 7, cfg.Policy.MaxWriteRetries)
	assert.Equal(t, []domain.Role{domain.RoleAdmin, domain.RoleManager}, cfg.Policy.ExemptRoles)
	assert.Equal(t, "Europe/Berlin", cfg.Policy.Loc().String())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.env")
	writeEnv(t, path, "TEMPO_DB=/from/file.db\nTEMPO_IDLE_TIMEOUT=10m\n")
	t.Setenv("TEMPO_IDLE_TIMEOUT", "7m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Minute, cfg.Policy.IdleTimeout)
	assert.Equal(t, "/from/file.db", cfg.DBPath)
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	t.Setenv("TEMPO_DB", "/tmp/tempo.db")
	cases := map[string]string{
		"duration":  "TEMPO_IDLE_TIMEOUT=soon",
		"retries":   "TEMPO_MAX_WRITE_RETRIES=many",
		"role":      "TEMPO_EXEMPT_ROLES=root",
		"timezone":  "TEMPO_TIMEZONE=Mars/Olympus",
		"policy":    "TEMPO_AUTO_CHECKOUT_AFTER=1m",
		"log level": "TEMPO_LOG_LEVEL=loud",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tempo.env")
			writeEnv(t, path, line+"\n")
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestLive_ReloadKeepsPreviousOnError(t *testing.T) {
	t.Setenv("TEMPO_DB", "/tmp/tempo.db")
	path := filepath.Join(t.TempDir(), "tempo.env")
	writeEnv(t, path, "TEMPO_IDLE_TIMEOUT=10m\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	live := NewLive(cfg)

	writeEnv(t, path, "TEMPO_IDLE_TIMEOUT=3h\n")
	assert.Error(t, live.Reload(path), "idle timeout past auto-checkout is rejected")
	assert.Equal(t, 10*time.Minute, live.Policy().IdleTimeout)

	writeEnv(t, path, "TEMPO_IDLE_TIMEOUT=15m\n")
	require.NoError(t, live.Reload(path))
	assert.Equal(t, 15*time.Minute, live.Policy().IdleTimeout)
}

func TestLive_WatchPicksUpChanges(t *testing.T) {
	t.Setenv("TEMPO_DB", "/tmp/tempo.db")
	path := filepath.Join(t.TempDir(), "tempo.env")
	writeEnv(t, path, "TEMPO_IDLE_TIMEOUT=10m\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	live := NewLive(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, live.Watch(ctx, path, nil))
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	// The watcher may not be registered yet, so keep rewriting until seen.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("TEMPO_IDLE_TIMEOUT=20m\n"), 0o644)
		return live.Policy().IdleTimeout == 20*time.Minute
	}, 5*time.Second, 50*time.Millisecond)
}
