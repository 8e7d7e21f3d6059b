package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexanderramin/tempo/internal/service"
)

// IdleScanJob runs the idle and auto-checkout rules.
func IdleScanJob(rules service.RulesService, every time.Duration, logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.Default()
	}
	return Job{
		Name:     "idle-scan",
		Interval: every,
		Run: func(ctx context.Context) error {
			report, err := rules.CheckIdleSessions(ctx)
			if err != nil {
				return err
			}
			if report.Demoted+report.AutoStopped+report.Failed > 0 {
				logger.InfoContext(ctx, "idle scan",
					"scanned", report.Scanned,
					"demoted", report.Demoted,
					"auto_stopped", report.AutoStopped,
					"failed", report.Failed,
				)
			}
			return nil
		},
	}
}

// OvertimeScanJob runs the daily overtime rule.
func OvertimeScanJob(rules service.RulesService, every time.Duration, logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.Default()
	}
	return Job{
		Name:     "overtime-scan",
		Interval: every,
		Run: func(ctx context.Context) error {
			report, err := rules.CheckOvertime(ctx)
			if err != nil {
				return err
			}
			if report.Alerted+report.Failed > 0 {
				logger.InfoContext(ctx, "overtime scan",
					"users", report.Users,
					"alerted", report.Alerted,
					"failed", report.Failed,
				)
			}
			return nil
		},
	}
}

// PresenceSweepJob expires stale presence entries at half the TTL.
func PresenceSweepJob(presence service.PresenceService, ttl time.Duration) Job {
	every := ttl / 2
	if every <= 0 {
		every = time.Minute
	}
	return Job{
		Name:     "presence-sweep",
		Interval: every,
		Run: func(ctx context.Context) error {
			_, err := presence.Sweep(ctx)
			return err
		},
	}
}
