package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/elocute/internal/assess"
	"github.com/MrWong99/elocute/internal/observe"
)

var (
	// ErrSessionNotFound is returned for an unknown or expired session ID.
	ErrSessionNotFound = errors.New("server: session not found")

	// ErrTooManySessions is returned by [Manager.Create] once the configured
	// session limit is reached.
	ErrTooManySessions = errors.New("server: too many sessions")
)

// SessionFactory builds a fresh idle practice session.
type SessionFactory func() *assess.Session

// entry confines one session behind its own mutex. lastUsed is unix nanos.
// closed is set under mu once the entry left the map; callers that looked
// the entry up earlier must treat it as gone.
type entry struct {
	mu       sync.Mutex
	sess     *assess.Session
	closed   bool
	lastUsed atomic.Int64
}

// close resets the session and marks the entry dead. Must hold e.mu.
func (e *entry) close() {
	e.closed = true
	e.sess.Reset()
}

// Manager owns the live practice sessions of the HTTP API. Operations on
// different sessions run in parallel; operations on the same session are
// serialised.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  SessionFactory

	maxSessions int
	ttl         time.Duration
	metrics     *observe.Metrics
	now         func() time.Time
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithMaxSessions caps the number of live sessions. Zero means no limit.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) { m.maxSessions = n }
}

// WithSessionTTL expires sessions idle for longer than d. Zero disables
// expiry.
func WithSessionTTL(d time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = d }
}

// WithManagerMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithManagerMetrics(mt *observe.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager returns an empty manager that builds sessions with factory.
func NewManager(factory SessionFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*entry),
		factory:  factory,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// SetFactory replaces the session factory. Existing sessions are kept as
// they are; sessions created afterwards use the new factory.
func (m *Manager) SetFactory(factory SessionFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factory = factory
}

// Create opens a new session and returns its ID.
func (m *Manager) Create(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return "", ErrTooManySessions
	}
	id := uuid.NewString()
	e := &entry{sess: m.factory()}
	e.lastUsed.Store(m.now().UnixNano())
	m.sessions[id] = e
	m.metrics.ActiveSessions.Add(ctx, 1)
	return id, nil
}

// With runs fn with exclusive access to the session id. If the session is
// deleted or expires while With waits for its turn, fn is not run and
// [ErrSessionNotFound] is returned.
func (m *Manager) With(id string, fn func(*assess.Session) error) error {
	e, ok := m.lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	return m.run(e, fn)
}

func (m *Manager) lookup(id string) (*entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	return e, ok
}

func (m *Manager) run(e *entry, fn func(*assess.Session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrSessionNotFound
	}
	e.lastUsed.Store(m.now().UnixNano())
	return fn(e.sess)
}

// Delete discards the session id. In-flight operations on it finish first.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	e.close()
	e.mu.Unlock()
	m.metrics.ActiveSessions.Add(ctx, -1)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. Sessions with an operation in flight are skipped.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl).UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.lastUsed.Load() > cutoff || !e.mu.TryLock() {
			continue
		}
		e.close()
		e.mu.Unlock()
		delete(m.sessions, id)
		n++
	}
	if n > 0 {
		m.metrics.ActiveSessions.Add(ctx, int64(-n))
		observe.Logger(ctx).Info("expired idle sessions", "count", n)
	}
	return n
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if m.ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
