package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/observability"
	"github.com/aretw0/formflow/pkg/ports"
)

const lockTTL = 30 * time.Second

// Session is one respondent filling one form.
type Session struct {
	ID        string
	FormID    string
	Engine    *formflow.Engine
	CreatedAt time.Time

	lastSeen time.Time
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the registered form definitions and the live sessions.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	mu       sync.Mutex
	forms    map[string]domain.FormDefinition
	sessions map[string]*Session
	locks    map[string]*lockEntry

	engineOpts   []formflow.Option
	hooks        domain.LifecycleHooks
	sessionHooks func(sessionID string) domain.LifecycleHooks
	locker       ports.DistributedLocker
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

// Option configures the Manager.
type Option func(*Manager)

// WithEngineOptions applies opts to every engine the manager creates.
func WithEngineOptions(opts ...formflow.Option) Option {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// WithHooks registers lifecycle hooks on every engine.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithSessionHooks registers hooks built for each session id. They run after
// the WithHooks ones.
func WithSessionHooks(fn func(sessionID string) domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.sessionHooks = fn
	}
}

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the time source used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator overrides the session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		forms:    make(map[string]domain.FormDefinition),
		sessions: make(map[string]*Session),
		locks:    make(map[string]*lockEntry),
		logger:   logging.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register makes def available to Create. Registering an id twice replaces
// the definition for sessions created afterwards.
func (m *Manager) Register(def domain.FormDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forms[def.ID] = def.Clone()
	return nil
}

// Forms returns the registered form ids, sorted.
func (m *Manager) Forms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.forms))
	for id := range m.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Form returns a registered definition.
func (m *Manager) Form(formID string) (domain.FormDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.forms[formID]
	if !ok {
		return domain.FormDefinition{}, fmt.Errorf("%w: %s", domain.ErrFormNotFound, formID)
	}
	return def.Clone(), nil
}

// Create starts a new session for formID. The engine resumes stored progress
// for that form if any exists.
func (m *Manager) Create(ctx context.Context, formID string, opts ...formflow.Option) (*Session, error) {
	def, err := m.Form(formID)
	if err != nil {
		return nil, err
	}

	id := m.newID()
	hooks := m.hooks
	if m.sessionHooks != nil {
		hooks = observability.Combine(hooks, m.sessionHooks(id))
	}

	all := []formflow.Option{formflow.WithLogger(m.logger.With("session_id", id))}
	all = append(all, m.engineOpts...)
	all = append(all, formflow.WithLifecycleHooks(hooks))
	all = append(all, opts...)
	eng, err := formflow.New(def, all...)
	if err != nil {
		return nil, err
	}

	now := m.now()
	s := &Session{ID: id, FormID: formID, Engine: eng, CreatedAt: now, lastSeen: now}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	eng.Start(ctx)

	m.logger.Info("session created", "session_id", s.ID, "form_id", formID)
	return s, nil
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	s.lastSeen = m.now()
	return s, nil
}

// List returns the live session ids, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Do runs fn on a session while holding its lock.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(context.Context, *Session) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := m.Get(sessionID)
		if err != nil {
			return err
		}
		return fn(ctx, s)
	})
}

// Close stops the session's engine, which flushes its progress, and forgets it.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		s, ok := m.sessions[sessionID]
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		s.Engine.Stop(ctx)
		m.logger.Info("session closed", "session_id", sessionID, "form_id", s.FormID)
		return nil
	})
}

// CloseIdle closes every session unused for longer than maxIdle and returns
// how many were closed.
func (m *Manager) CloseIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)
	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	closed := 0
	for _, id := range idle {
		if err := m.Close(ctx, id); err == nil {
			closed++
		}
	}
	return closed
}

// Shutdown closes every live session.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, id := range m.List() {
		if err := m.Close(ctx, id); err != nil {
			m.logger.Warn("failed to close session", "session_id", id, "err", err)
		}
	}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "session:"+sessionID, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
