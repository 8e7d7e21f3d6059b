package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexanderramin/tempo/internal/clock"
	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/events"
	"github.com/google/uuid"
)

type sessionService struct {
	read     repos
	uow      db.UnitOfWork
	clock    clock.Clock
	policy   PolicySource
	notify   notifier
	observer UseCaseObserver
}

// NewSessionService builds the lifecycle engine. conn serves reads outside
// transactions; mutations go through uow.
func NewSessionService(
	conn db.DBTX,
	uow db.UnitOfWork,
	clk clock.Clock,
	policy PolicySource,
	pub events.Publisher,
	logger *slog.Logger,
	observers ...UseCaseObserver,
) SessionService {
	return &sessionService{
		read:     reposFor(conn),
		uow:      uow,
		clock:    clk,
		policy:   policy,
		notify:   newNotifier(pub, logger),
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *sessionService) Start(ctx context.Context, id domain.Identity, req StartRequest) (session *domain.WorkSession, err error) {
	startedAt := time.Now()
	fields := map[string]any{"user_id": id.UserID, "organization_id": id.OrganizationID}
	defer func() { observe(ctx, s.observer, "session-start", startedAt, fields, err) }()

	if err = id.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	p := s.policy.Policy()
	session = domain.NewSession(uuid.New().String(), id, req.ProjectID, req.Task, req.Description, now, p)
	fields["session_id"] = session.ID

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := reposFor(tx)
		if err := r.users.Upsert(ctx, userFor(id, now)); err != nil {
			return err
		}
		if err := r.sessions.Create(ctx, session); err != nil {
			return err
		}
		if err := r.active.Claim(ctx, session); err != nil {
			return err
		}
		s.notify.afterCommit(ctx, events.Organization(id.OrganizationID), sessionEvent(events.SessionStart, session,
			events.SessionStartPayload{UserID: id.UserID, Session: events.Snapshot(session)}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return session, nil
}

func (s *sessionService) RecordActivity(ctx context.Context, id domain.Identity, req ActivityRequest) (session *domain.WorkSession, err error) {
	startedAt := time.Now()
	fields := map[string]any{"user_id": id.UserID, "session_id": req.SessionID, "type": string(req.Type)}
	defer func() { observe(ctx, s.observer, "session-activity", startedAt, fields, err) }()

	if err = id.Validate(); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, &domain.ValidationError{Field: "session_id", Reason: "is required"}
	}
	kind, err := domain.ParseActivityType(string(req.Type))
	if err != nil {
		return nil, err
	}

	p := s.policy.Policy()
	err = withVersionRetry(ctx, p.MaxWriteRetries, func() error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			r := reposFor(tx)
			current, err := ownedSession(ctx, r.sessions, id, req.SessionID)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			occurredAt := req.OccurredAt
			if occurredAt.IsZero() {
				occurredAt = now
			}
			gap, err := current.ApplyActivity(kind, occurredAt, now, p.MaxActivityGap)
			if err != nil {
				return err
			}
			if err := r.sessions.Update(ctx, current); err != nil {
				return err
			}
			if err := r.logs.Create(ctx, &domain.ActivityLog{
				ID:             uuid.New().String(),
				OrganizationID: current.OrganizationID,
				UserID:         current.UserID,
				SessionID:      current.ID,
				Action:         req.Action,
				Type:           kind,
				OccurredAt:     occurredAt,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
			fields["gap_seconds"] = gap
			s.notify.afterCommit(ctx, events.Organization(current.OrganizationID),
				sessionEvent(events.SessionTick, current, events.Tick(current)))
			session = current
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("recording activity: %w", err)
	}
	return session, nil
}

func (s *sessionService) Pulse(ctx context.Context, id domain.Identity) (session *domain.WorkSession, err error) {
	startedAt := time.Now()
	fields := map[string]any{"user_id": id.UserID}
	defer func() { observe(ctx, s.observer, "session-pulse", startedAt, fields, err) }()

	if err = id.Validate(); err != nil {
		return nil, err
	}
	p := s.policy.Policy()
	role := id.EffectiveRole()
	exempt := p.IsExemptFromIdlePolicy(role)

	err = withVersionRetry(ctx, p.MaxWriteRetries, func() error {
		session = nil
		return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			r := reposFor(tx)
			now := s.clock.Now()
			if err := r.users.Upsert(ctx, userFor(id, now)); err != nil {
				return err
			}
			sessionID, err := r.active.GetSessionID(ctx, id.UserID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			current, err := ownedSession(ctx, r.sessions, id, sessionID)
			if errors.Is(err, domain.ErrNotFound) {
				// The active session belongs to another organization.
				return nil
			}
			if err != nil {
				return err
			}
			res, err := current.ApplyPulse(now, exempt, p)
			if err != nil {
				return err
			}
			if err := r.sessions.Update(ctx, current); err != nil {
				return err
			}
			kind := domain.ActivityActive
			if res.Idle > 0 {
				kind = domain.ActivityIdle
			}
			if err := r.logs.Create(ctx, &domain.ActivityLog{
				ID:             uuid.New().String(),
				OrganizationID: current.OrganizationID,
				UserID:         current.UserID,
				SessionID:      current.ID,
				Action:         domain.ActionPulse,
				Type:           kind,
				OccurredAt:     now,
				CreatedAt:      now,
			}); err != nil {
				return err
			}

			tick := events.Tick(current)
			tick.Status = string(current.Status)
			productivity := p.ReportedProductivity(current, role)
			tick.Productivity = &productivity
			s.notify.afterCommit(ctx, events.Organization(current.OrganizationID),
				sessionEvent(events.SessionTick, current, tick))

			fields["session_id"] = current.ID
			fields["gap_seconds"] = res.Gap
			fields["revived"] = res.Revived
			session = current
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("pulsing session: %w", err)
	}
	return session, nil
}

func (s *sessionService) Stop(ctx context.Context, id domain.Identity, sessionID string) (session *domain.WorkSession, err error) {
	startedAt := time.Now()
	fields := map[string]any{"user_id": id.UserID, "session_id": sessionID}
	defer func() { observe(ctx, s.observer, "session-stop", startedAt, fields, err) }()

	if err = id.Validate(); err != nil {
		return nil, err
	}
	p := s.policy.Policy()
	err = withVersionRetry(ctx, p.MaxWriteRetries, func() error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			r := reposFor(tx)
			current, err := ownedSession(ctx, r.sessions, id, sessionID)
			if err != nil {
				return err
			}
			if err := current.Stop(s.clock.Now()); err != nil {
				return err
			}
			if err := finishSession(ctx, r, current); err != nil {
				return err
			}
			s.notifyStopped(ctx, current)
			session = current
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("stopping session: %w", err)
	}
	return session, nil
}

// AutoCheckout force-stops a running or inactive session regardless of its
// owner.
func (s *sessionService) AutoCheckout(ctx context.Context, sessionID string) (session *domain.WorkSession, err error) {
	startedAt := time.Now()
	fields := map[string]any{"session_id": sessionID}
	defer func() { observe(ctx, s.observer, "session-auto-checkout", startedAt, fields, err) }()

	p := s.policy.Policy()
	err = withVersionRetry(ctx, p.MaxWriteRetries, func() error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			r := reposFor(tx)
			current, err := r.sessions.GetByID(ctx, sessionID)
			if err != nil {
				return err
			}
			if err := current.AutoCheckout(s.clock.Now()); err != nil {
				return err
			}
			if err := finishSession(ctx, r, current); err != nil {
				return err
			}
			s.notifyStopped(ctx, current)
			session = current
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("auto-checkout: %w", err)
	}
	return session, nil
}

func (s *sessionService) LogManual(ctx context.Context, id domain.Identity, req ManualRequest) (session *domain.WorkSession, err error) {
	startedAt := time.Now()
	fields := map[string]any{"user_id": id.UserID}
	defer func() { observe(ctx, s.observer, "session-log-manual", startedAt, fields, err) }()

	if err = id.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	session, err = domain.NewManualSession(uuid.New().String(), id, req.ProjectID, req.Task, req.Description,
		req.StartTime, req.EndTime, now, s.policy.Policy())
	if err != nil {
		return nil, err
	}
	fields["session_id"] = session.ID
	fields["duration"] = session.Duration

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		r := reposFor(tx)
		if err := r.users.Upsert(ctx, userFor(id, now)); err != nil {
			return err
		}
		if err := r.sessions.Create(ctx, session); err != nil {
			return err
		}
		s.notifyStopped(ctx, session)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("logging manual session: %w", err)
	}
	return session, nil
}

func (s *sessionService) GetByID(ctx context.Context, id domain.Identity, sessionID string) (*domain.WorkSession, error) {
	return ownedSession(ctx, s.read.sessions, id, sessionID)
}

func (s *sessionService) GetActive(ctx context.Context, id domain.Identity) (*domain.WorkSession, error) {
	return activeSession(ctx, s.read, id)
}

func (s *sessionService) ListByUserDay(ctx context.Context, id domain.Identity, day string) ([]*domain.WorkSession, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if day == "" {
		day = s.policy.Policy().DayOf(s.clock.Now())
	} else if _, err := time.Parse(domain.DayLayout, day); err != nil {
		return nil, &domain.ValidationError{Field: "day", Reason: "must be YYYY-MM-DD"}
	}
	list, err := s.read.sessions.ListByUserDay(ctx, id.UserID, day)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, sess := range list {
		if sess.OrganizationID == id.OrganizationID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *sessionService) ListActivity(ctx context.Context, id domain.Identity, sessionID string) ([]*domain.ActivityLog, error) {
	if _, err := ownedSession(ctx, s.read.sessions, id, sessionID); err != nil {
		return nil, err
	}
	return s.read.logs.ListBySession(ctx, sessionID)
}

func (s *sessionService) notifyStopped(ctx context.Context, session *domain.WorkSession) {
	snap := events.Snapshot(session)
	s.notify.afterCommit(ctx, events.Organization(session.OrganizationID), sessionEvent(events.SessionStop, session,
		events.SessionStopPayload{UserID: session.UserID, SessionID: session.ID, Session: &snap}))
}

// finishSession persists a stopped session and frees its owner's active slot.
func finishSession(ctx context.Context, r repos, s *domain.WorkSession) error {
	if err := r.sessions.Update(ctx, s); err != nil {
		return err
	}
	return r.active.Release(ctx, s.UserID, s.ID)
}

// activeSession resolves the caller's active session, or nil when none.
func activeSession(ctx context.Context, r repos, id domain.Identity) (*domain.WorkSession, error) {
	sessionID, err := r.active.GetSessionID(ctx, id.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, err := ownedSession(ctx, r.sessions, id, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return s, err
}

func userFor(id domain.Identity, now time.Time) *domain.User {
	return &domain.User{
		ID:             id.UserID,
		OrganizationID: id.OrganizationID,
		Role:           id.EffectiveRole(),
		LastSeenAt:     now,
	}
}
