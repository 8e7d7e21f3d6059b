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
	"github.com/alexanderramin/tempo/internal/repository"
	"github.com/google/uuid"
)

// Admin notification types carried by ADMIN_NOTIFICATION events.
const (
	NoticeUserInactive = "USER_INACTIVE"
	NoticeAutoCheckout = "AUTO_CHECKOUT"
)

// errRuleNoLongerApplies aborts a per-session transaction whose fresh read
// no longer meets the rule that selected it.
var errRuleNoLongerApplies = errors.New("rule no longer applies")

type rulesService struct {
	read     repos
	uow      db.UnitOfWork
	clock    clock.Clock
	policy   PolicySource
	notify   notifier
	logger   *slog.Logger
	observer UseCaseObserver
}

func NewRulesService(
	conn db.DBTX,
	uow db.UnitOfWork,
	clk clock.Clock,
	policy PolicySource,
	pub events.Publisher,
	logger *slog.Logger,
	observers ...UseCaseObserver,
) RulesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &rulesService{
		read:     reposFor(conn),
		uow:      uow,
		clock:    clk,
		policy:   policy,
		notify:   newNotifier(pub, logger),
		logger:   logger,
		observer: useCaseObserverOrNoop(observers),
	}
}

type idleAction int

const (
	idleNone idleAction = iota
	idleDemote
	idleCheckout
)

// classifyIdle decides what the idle rule does to s at now. Auto-checkout
// is checked first; only running sessions are demoted.
func classifyIdle(s *domain.WorkSession, now time.Time, p domain.Policy) idleAction {
	idle := s.IdleFor(now)
	switch {
	case !s.Status.IsActive():
		return idleNone
	case idle > p.AutoCheckoutAfter:
		return idleCheckout
	case s.Status == domain.StatusRunning && idle > p.IdleTimeout:
		return idleDemote
	}
	return idleNone
}

func (s *rulesService) CheckIdleSessions(ctx context.Context) (report IdleScanReport, err error) {
	startedAt := time.Now()
	fields := map[string]any{}
	defer func() {
		fields["scanned"] = report.Scanned
		fields["demoted"] = report.Demoted
		fields["auto_stopped"] = report.AutoStopped
		fields["failed"] = report.Failed
		observe(ctx, s.observer, "check-idle-sessions", startedAt, fields, err)
	}()

	p := s.policy.Policy()
	owned, err := s.read.sessions.ListOwnedByStatus(ctx, domain.StatusRunning, domain.StatusInactive)
	if err != nil {
		return report, fmt.Errorf("listing sessions for idle scan: %w", err)
	}

	now := s.clock.Now()
	for _, o := range owned {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if p.IsExemptFromIdlePolicy(o.Role) {
			report.Exempt++
			continue
		}
		action := classifyIdle(o.Session, now, p)
		if action == idleNone {
			continue
		}

		applied, err := s.applyIdleRule(ctx, o.Session.ID, action, now, p)
		switch {
		case err != nil:
			report.Failed++
			s.logger.ErrorContext(ctx, "idle rule failed",
				"session_id", o.Session.ID,
				"user_id", o.Session.UserID,
				"organization_id", o.Session.OrganizationID,
				"error", err,
			)
		case !applied:
		case action == idleCheckout:
			report.AutoStopped++
		default:
			report.Demoted++
		}
	}
	return report, nil
}

// applyIdleRule re-reads the session under a transaction and applies action
// only if the fresh state still calls for it, so overlapping scans act once.
func (s *rulesService) applyIdleRule(ctx context.Context, sessionID string, action idleAction, now time.Time, p domain.Policy) (bool, error) {
	err := withVersionRetry(ctx, p.MaxWriteRetries, func() error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			r := reposFor(tx)
			current, err := r.sessions.GetByID(ctx, sessionID)
			if err != nil {
				return err
			}
			if classifyIdle(current, now, p) != action {
				return errRuleNoLongerApplies
			}
			idleFor := current.IdleFor(now).Truncate(time.Second)

			if action == idleCheckout {
				if err := current.AutoCheckout(now); err != nil {
					return err
				}
				if err := finishSession(ctx, r, current); err != nil {
					return err
				}
				alert := newAlert(current, domain.AlertAutoCheckout, domain.SeverityHigh,
					fmt.Sprintf("session auto-checked out after %s without activity", idleFor), now, p)
				if err := r.alerts.Create(ctx, alert); err != nil {
					return err
				}
				s.notifyAutoCheckout(ctx, current, alert)
				return nil
			}

			if err := current.MarkInactive(now); err != nil {
				return err
			}
			if err := r.sessions.Update(ctx, current); err != nil {
				return err
			}
			alert := newAlert(current, domain.AlertIdle, domain.SeverityMedium,
				fmt.Sprintf("user inactive for %s", idleFor), now, p)
			if err := r.alerts.Create(ctx, alert); err != nil {
				return err
			}
			s.notifyInactive(ctx, current, alert)
			return nil
		})
	})
	if errors.Is(err, errRuleNoLongerApplies) {
		return false, nil
	}
	return err == nil, err
}

func (s *rulesService) notifyInactive(ctx context.Context, sess *domain.WorkSession, alert *domain.Alert) {
	org := events.Organization(sess.OrganizationID)
	s.notify.afterCommit(ctx, org, sessionEvent(events.AdminNotification, sess,
		events.AdminNotificationPayload{Type: NoticeUserInactive, UserID: sess.UserID, Message: alert.Message}))
	tick := events.Tick(sess)
	tick.Status = string(sess.Status)
	s.notify.afterCommit(ctx, org, sessionEvent(events.SessionTick, sess, tick))
	s.notify.afterCommit(ctx, events.User(sess.UserID), sessionEvent(events.InactiveAlert, sess, events.Alert(alert)))
}

func (s *rulesService) notifyAutoCheckout(ctx context.Context, sess *domain.WorkSession, alert *domain.Alert) {
	org := events.Organization(sess.OrganizationID)
	snap := events.Snapshot(sess)
	s.notify.afterCommit(ctx, org, sessionEvent(events.SessionStop, sess,
		events.SessionStopPayload{UserID: sess.UserID, SessionID: sess.ID, Session: &snap}))
	s.notify.afterCommit(ctx, org, sessionEvent(events.AdminNotification, sess,
		events.AdminNotificationPayload{Type: NoticeAutoCheckout, UserID: sess.UserID, Message: alert.Message}))
}

func (s *rulesService) CheckOvertime(ctx context.Context) (report OvertimeScanReport, err error) {
	startedAt := time.Now()
	fields := map[string]any{}
	defer func() {
		fields["users"] = report.Users
		fields["alerted"] = report.Alerted
		fields["failed"] = report.Failed
		observe(ctx, s.observer, "check-overtime", startedAt, fields, err)
	}()

	p := s.policy.Policy()
	now := s.clock.Now()
	dayStart, dayEnd := p.DayBounds(now)
	day := p.DayOf(now)

	running, err := s.read.sessions.ListRunningStartedBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return report, fmt.Errorf("listing sessions for overtime scan: %w", err)
	}

	totals := sumDurationByUser(running)
	report.Users = len(totals)
	threshold := int64(p.OvertimeThreshold / time.Second)
	for _, t := range totals {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if t.seconds <= threshold {
			continue
		}
		report.OverThreshold++

		created, err := s.raiseOvertime(ctx, t, day, now, p)
		switch {
		case err != nil:
			report.Failed++
			s.logger.ErrorContext(ctx, "overtime rule failed",
				"user_id", t.userID,
				"organization_id", t.orgID,
				"error", err,
			)
		case created:
			report.Alerted++
		default:
			report.AlreadyAlerted++
		}
	}
	return report, nil
}

type userTotal struct {
	userID  string
	orgID   string
	seconds int64
	latest  *domain.WorkSession
}

// sumDurationByUser groups sessions by owner, preserving first-seen order.
func sumDurationByUser(sessions []*domain.WorkSession) []*userTotal {
	var order []*userTotal
	byUser := make(map[string]*userTotal)
	for _, s := range sessions {
		t, ok := byUser[s.UserID]
		if !ok {
			t = &userTotal{userID: s.UserID, orgID: s.OrganizationID}
			byUser[s.UserID] = t
			order = append(order, t)
		}
		t.seconds += s.Duration
		t.latest = s
	}
	return order
}

// raiseOvertime creates the day's overtime alert for one user unless one
// already exists. The existence check and the unique index together make it
// at most once per user and day.
func (s *rulesService) raiseOvertime(ctx context.Context, t *userTotal, day string, now time.Time, p domain.Policy) (bool, error) {
	created := false
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		alerts := repository.NewSQLiteAlertRepo(tx)
		exists, err := alerts.ExistsForUserDay(ctx, t.userID, domain.AlertOvertime, day)
		if err != nil || exists {
			return err
		}
		alert := newAlert(t.latest, domain.AlertOvertime, domain.SeverityHigh,
			fmt.Sprintf("worked %s today, over the %s threshold", time.Duration(t.seconds)*time.Second, p.OvertimeThreshold), now, p)
		if err := alerts.Create(ctx, alert); err != nil {
			return err
		}
		s.notify.afterCommit(ctx, events.User(t.userID), events.Event{
			Name:    events.OvertimeAlert,
			At:      now,
			Payload: events.Alert(alert),
		})
		created = true
		return nil
	})
	if errors.Is(err, domain.ErrConflict) {
		return false, nil
	}
	return created, err
}

func newAlert(s *domain.WorkSession, t domain.AlertType, sev domain.Severity, msg string, now time.Time, p domain.Policy) *domain.Alert {
	sessionID := s.ID
	return &domain.Alert{
		ID:             uuid.New().String(),
		OrganizationID: s.OrganizationID,
		UserID:         s.UserID,
		SessionID:      &sessionID,
		Type:           t,
		Severity:       sev,
		Message:        msg,
		Day:            p.DayOf(now),
		CreatedAt:      now,
	}
}
