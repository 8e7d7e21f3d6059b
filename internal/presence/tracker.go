// Package presence tracks which users currently hold a realtime connection.
// It is a cache: losing it only delays presence notices until clients
// reconnect or the next sweep.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Tracker is the presence capability injected into the fan-out layer. A
// shared key-value store can back it when the core runs on several nodes.
//
// Presence is kept per (user, organization) so connections opened under
// different organizations are counted separately.
type Tracker interface {
	// Connect registers one connection. first reports whether the user was
	// offline in orgID before.
	Connect(ctx context.Context, userID, orgID string, at time.Time) (first bool, err error)
	// Disconnect drops one connection. last reports whether the user went
	// offline in orgID.
	Disconnect(ctx context.Context, userID, orgID string) (last bool, err error)
	// Touch refreshes the last-seen instant of a live connection. An entry
	// removed by Expire is restored with one connection and revived is set.
	Touch(ctx context.Context, userID, orgID string, at time.Time) (revived bool, err error)
	IsOnline(ctx context.Context, userID string) (bool, error)
	OnlineUsers(ctx context.Context, orgID string) ([]string, error)
	// Expire removes entries not seen since cutoff and returns them.
	Expire(ctx context.Context, cutoff time.Time) ([]Entry, error)
}

// Entry is one user online in one organization.
type Entry struct {
	UserID         string
	OrganizationID string
	Connections    int
	LastSeen       time.Time
}

// Memory is a single-process Tracker.
type Memory struct {
	mu     sync.Mutex
	users  map[string]map[string]*Entry   // user -> org -> entry
	online map[string]map[string]struct{} // org -> users
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]map[string]*Entry),
		online: make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Connect(_ context.Context, userID, orgID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookupLocked(userID, orgID)
	if !ok {
		e = m.insertLocked(userID, orgID)
	}
	e.Connections++
	if at.After(e.LastSeen) {
		e.LastSeen = at
	}
	return !ok, nil
}

func (m *Memory) Disconnect(_ context.Context, userID, orgID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookupLocked(userID, orgID)
	if !ok {
		return false, nil
	}
	e.Connections--
	if e.Connections > 0 {
		return false, nil
	}
	m.removeLocked(e)
	return true, nil
}

func (m *Memory) Touch(_ context.Context, userID, orgID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookupLocked(userID, orgID)
	if !ok {
		e = m.insertLocked(userID, orgID)
		e.Connections = 1
	}
	if at.After(e.LastSeen) {
		e.LastSeen = at
	}
	return !ok, nil
}

func (m *Memory) IsOnline(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users[userID]) > 0, nil
}

func (m *Memory) OnlineUsers(_ context.Context, orgID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.online[orgID]))
	for u := range m.online[orgID] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Expire(_ context.Context, cutoff time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []*Entry
	for _, orgs := range m.users {
		for _, e := range orgs {
			if e.LastSeen.Before(cutoff) {
				stale = append(stale, e)
			}
		}
	}
	expired := make([]Entry, 0, len(stale))
	for _, e := range stale {
		m.removeLocked(e)
		expired = append(expired, *e)
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].UserID != expired[j].UserID {
			return expired[i].UserID < expired[j].UserID
		}
		return expired[i].OrganizationID < expired[j].OrganizationID
	})
	return expired, nil
}

func (m *Memory) lookupLocked(userID, orgID string) (*Entry, bool) {
	e, ok := m.users[userID][orgID]
	return e, ok
}

func (m *Memory) insertLocked(userID, orgID string) *Entry {
	e := &Entry{UserID: userID, OrganizationID: orgID}
	orgs, ok := m.users[userID]
	if !ok {
		orgs = make(map[string]*Entry)
		m.users[userID] = orgs
	}
	orgs[orgID] = e
	set, ok := m.online[orgID]
	if !ok {
		set = make(map[string]struct{})
		m.online[orgID] = set
	}
	set[userID] = struct{}{}
	return e
}

func (m *Memory) removeLocked(e *Entry) {
	if orgs, ok := m.users[e.UserID]; ok {
		delete(orgs, e.OrganizationID)
		if len(orgs) == 0 {
			delete(m.users, e.UserID)
		}
	}
	if set, ok := m.online[e.OrganizationID]; ok {
		delete(set, e.UserID)
		if len(set) == 0 {
			delete(m.online, e.OrganizationID)
		}
	}
}
