package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alexanderramin/tempo/internal/clock"
	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/events"
	"github.com/alexanderramin/tempo/internal/presence"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/stretchr/testify/require"
)

// harness wires every service against one database, a manual clock and a
// recording publisher.
type harness struct {
	db       *sql.DB
	clock    *clock.Manual
	events   *events.Recorder
	policy   domain.Policy
	sessions SessionService
	rules    RulesService
	presence PresenceService
	alerts   AlertService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	db     *sql.DB
	uow    db.UnitOfWork
	pub    events.Publisher
	policy domain.Policy
}

func withDB(d *sql.DB) harnessOption { return func(c *harnessConfig) { c.db = d } }

func withUoW(u db.UnitOfWork) harnessOption { return func(c *harnessConfig) { c.uow = u } }

func withPublisher(p events.Publisher) harnessOption { return func(c *harnessConfig) { c.pub = p } }

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{policy: domain.DefaultPolicy()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.db == nil {
		cfg.db = testutil.NewTestDB(t)
	}
	if cfg.uow == nil {
		cfg.uow = testutil.NewTestUoW(cfg.db)
	}
	rec := events.NewRecorder()
	pub := events.Publisher(rec)
	if cfg.pub != nil {
		pub = events.Fanout{cfg.pub, rec}
	}

	clk := clock.NewManual(testutil.Epoch)
	policy := StaticPolicy(cfg.policy)
	return &harness{
		db:       cfg.db,
		clock:    clk,
		events:   rec,
		policy:   cfg.policy,
		sessions: NewSessionService(cfg.db, cfg.uow, clk, policy, pub, nil),
		rules:    NewRulesService(cfg.db, cfg.uow, clk, policy, pub, nil),
		presence: NewPresenceService(presence.NewMemory(), cfg.db, clk, cfg.policy.IdleTimeout, pub, nil),
		alerts:   NewAlertService(cfg.db),
	}
}

func (h *harness) eventNames() []events.Name {
	var names []events.Name
	for _, p := range h.events.All() {
		names = append(names, p.Event.Name)
	}
	return names
}

func mustStart(t *testing.T, h *harness, id domain.Identity) *domain.WorkSession {
	t.Helper()
	s, err := h.sessions.Start(context.Background(), id, StartRequest{Task: "build"})
	require.NoError(t, err)
	return s
}
