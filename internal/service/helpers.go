package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/events"
	"github.com/alexanderramin/tempo/internal/repository"
)

// repos bundles the repositories bound to one connection or transaction.
type repos struct {
	sessions repository.SessionRepo
	active   repository.ActiveSessionRepo
	logs     repository.ActivityLogRepo
	alerts   repository.AlertRepo
	users    repository.UserRepo
}

func reposFor(conn db.DBTX) repos {
	return repos{
		sessions: repository.NewSQLiteSessionRepo(conn),
		active:   repository.NewSQLiteActiveSessionRepo(conn),
		logs:     repository.NewSQLiteActivityLogRepo(conn),
		alerts:   repository.NewSQLiteAlertRepo(conn),
		users:    repository.NewSQLiteUserRepo(conn),
	}
}

// withVersionRetry runs attempt until it stops failing with a version
// conflict, at most maxAttempts times.
func withVersionRetry(ctx context.Context, maxAttempts int, attempt func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt()
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, domain.ErrRetryExhausted)
}

// ownedSession loads a session and hides it unless it belongs to id.
func ownedSession(ctx context.Context, r repository.SessionRepo, id domain.Identity, sessionID string) (*domain.WorkSession, error) {
	s, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != id.UserID || s.OrganizationID != id.OrganizationID {
		return nil, fmt.Errorf("work session %s: %w", sessionID, domain.ErrNotFound)
	}
	return s, nil
}

// notifier publishes events and swallows transport failures. Publishing is
// a side channel and never fails the mutation that triggered it.
type notifier struct {
	pub    events.Publisher
	logger *slog.Logger
}

func newNotifier(pub events.Publisher, logger *slog.Logger) notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return notifier{pub: pub, logger: logger}
}

func (n notifier) send(ctx context.Context, to events.Audience, ev events.Event) {
	if n.pub == nil {
		return
	}
	if err := n.pub.Publish(ctx, to, ev); err != nil {
		n.logger.WarnContext(ctx, "event publish failed",
			"event", string(ev.Name),
			"audience", to.String(),
			"session_id", ev.SessionID,
			"error", err,
		)
	}
}

// afterCommit queues ev for delivery once the enclosing transaction commits.
func (n notifier) afterCommit(ctx context.Context, to events.Audience, ev events.Event) {
	db.AfterCommit(ctx, func(ctx context.Context) {
		n.send(ctx, to, ev)
	})
}

func sessionEvent(name events.Name, s *domain.WorkSession, payload any) events.Event {
	return events.Event{
		Name:      name,
		SessionID: s.ID,
		Version:   s.Version,
		At:        s.UpdatedAt,
		Payload:   payload,
	}
}
