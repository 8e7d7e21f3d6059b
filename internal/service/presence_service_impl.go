package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexanderramin/tempo/internal/clock"
	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/events"
	"github.com/alexanderramin/tempo/internal/presence"
)

type presenceService struct {
	tracker presence.Tracker
	read    repos
	clock   clock.Clock
	ttl     time.Duration
	notify  notifier
	logger  *slog.Logger
}

// NewPresenceService bridges the presence tracker and the event publisher.
// Users not seen for ttl are expired by Sweep.
func NewPresenceService(
	tracker presence.Tracker,
	conn db.DBTX,
	clk clock.Clock,
	ttl time.Duration,
	pub events.Publisher,
	logger *slog.Logger,
) PresenceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &presenceService{
		tracker: tracker,
		read:    reposFor(conn),
		clock:   clk,
		ttl:     ttl,
		notify:  newNotifier(pub, logger),
		logger:  logger,
	}
}

func (s *presenceService) Connect(ctx context.Context, id domain.Identity) (*domain.WorkSession, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	first, err := s.tracker.Connect(ctx, id.UserID, id.OrganizationID, now)
	if err != nil {
		return nil, err
	}
	if err := s.read.users.Upsert(ctx, userFor(id, now)); err != nil {
		// Presence is best-effort; the role record catches up on the next write.
		s.logger.WarnContext(ctx, "recording user on connect failed", "user_id", id.UserID, "error", err)
	}
	if first {
		s.announceOnline(ctx, id.UserID, id.OrganizationID, now)
	}
	return activeSession(ctx, s.read, id)
}

func (s *presenceService) Disconnect(ctx context.Context, id domain.Identity) error {
	last, err := s.tracker.Disconnect(ctx, id.UserID, id.OrganizationID)
	if err != nil {
		return err
	}
	if last {
		s.announceOffline(ctx, id.UserID, id.OrganizationID)
	}
	return nil
}

// Touch refreshes a live connection. A user expired by Sweep while still
// connected comes back online and is announced again.
func (s *presenceService) Touch(ctx context.Context, id domain.Identity) error {
	now := s.clock.Now()
	revived, err := s.tracker.Touch(ctx, id.UserID, id.OrganizationID, now)
	if err != nil {
		return err
	}
	if revived {
		s.logger.InfoContext(ctx, "presence restored", "user_id", id.UserID, "organization_id", id.OrganizationID)
		s.announceOnline(ctx, id.UserID, id.OrganizationID, now)
	}
	return nil
}

func (s *presenceService) IsOnline(ctx context.Context, userID string) (bool, error) {
	return s.tracker.IsOnline(ctx, userID)
}

func (s *presenceService) OnlineUsers(ctx context.Context, orgID string) ([]string, error) {
	return s.tracker.OnlineUsers(ctx, orgID)
}

func (s *presenceService) Sweep(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	expired, err := s.tracker.Expire(ctx, s.clock.Now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	for _, e := range expired {
		s.logger.InfoContext(ctx, "presence expired", "user_id", e.UserID, "organization_id", e.OrganizationID)
		s.announceOffline(ctx, e.UserID, e.OrganizationID)
	}
	return len(expired), nil
}

func (s *presenceService) announceOnline(ctx context.Context, userID, orgID string, at time.Time) {
	s.notify.send(ctx, events.Organization(orgID), events.Event{
		Name:    events.UserOnline,
		At:      at,
		Payload: events.PresencePayload{UserID: userID, OrganizationID: orgID},
	})
}

func (s *presenceService) announceOffline(ctx context.Context, userID, orgID string) {
	s.notify.send(ctx, events.Organization(orgID), events.Event{
		Name:    events.UserOffline,
		At:      s.clock.Now(),
		Payload: events.PresencePayload{UserID: userID, OrganizationID: orgID},
	})
}
