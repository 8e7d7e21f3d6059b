package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/fsnotify/fsnotify"
)

// Live holds the current Config and swaps it on reload. It satisfies the
// services' policy source, so threshold changes apply to the next operation.
// Settings other than the policy are read once at startup.
type Live struct {
	cur atomic.Pointer[Config]
}

func NewLive(cfg *Config) *Live {
	l := &Live{}
	l.cur.Store(cfg)
	return l
}

func (l *Live) Config() *Config {
	return l.cur.Load()
}

func (l *Live) Policy() domain.Policy {
	return l.cur.Load().Policy
}

// Reload re-reads path and swaps in the result. The current config is kept
// when the new one fails to load or validate.
func (l *Live) Reload(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	l.cur.Store(cfg)
	return nil
}

// Watch reloads whenever the dotenv file at path is written, created or
// replaced, until ctx is cancelled. The parent directory is watched so
// editors that save by rename are picked up.
func (l *Live) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := l.Reload(abs); err != nil {
				logger.WarnContext(ctx, "config reload rejected, keeping previous", "path", abs, "error", err)
				continue
			}
			p := l.Policy()
			logger.InfoContext(ctx, "config reloaded",
				"path", abs,
				"idle_timeout", p.IdleTimeout,
				"auto_checkout_after", p.AutoCheckoutAfter,
				"overtime_threshold", p.OvertimeThreshold,
			)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "config watcher error", "error", err)
		}
	}
}
