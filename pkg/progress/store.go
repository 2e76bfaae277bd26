// Package progress persists in-progress form sessions so they can be
// recovered after a crash or restart.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
)

const (
	// KeyPrefix is prepended to the form id to build the storage key.
	KeyPrefix = "progress:"

	// DefaultRetention is how long a snapshot stays recoverable.
	DefaultRetention = 7 * 24 * time.Hour

	lockTTL = 10 * time.Second
)

// Key returns the storage key for a form.
func Key(formID string) string {
	return KeyPrefix + formID
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Store reads and writes progress snapshots over a KVStore.
//
// Save never fails from the caller's point of view: losing an autosave is
// not fatal, so errors are logged and dropped.
type Store struct {
	kv        ports.KVStore
	retention time.Duration
	now       func() time.Time
	locker    ports.DistributedLocker
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*lockEntry
}

// Option configures the Store.
type Option func(*Store)

// WithRetention overrides the retention window.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker serialises writes to the same key across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Store) {
		s.locker = locker
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a progress store over kv.
func NewStore(kv ports.KVStore, opts ...Option) *Store {
	s := &Store{
		kv:        kv,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    logging.NewNop(),
		locks:     make(map[string]*lockEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retention returns the configured retention window.
func (s *Store) Retention() time.Duration {
	return s.retention
}

// Save stamps and writes a snapshot, replacing any previous one.
func (s *Store) Save(ctx context.Context, p domain.Progress) {
	p.Timestamp = s.now().UnixMilli()
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("failed to encode progress", "form_id", p.FormID, "err", err)
		return
	}

	key := Key(p.FormID)
	err = s.withLock(ctx, key, func(ctx context.Context) error {
		return s.kv.Set(ctx, key, string(data))
	})
	if err != nil {
		s.logger.Warn("failed to save progress", "form_id", p.FormID, "err", err)
		return
	}
	s.logger.Debug("progress saved", "form_id", p.FormID, "step", p.StepIndex)
}

// Load returns the snapshot for formID. Missing, unreadable and expired
// snapshots are all reported as absent; the latter two are deleted.
func (s *Store) Load(ctx context.Context, formID string) (*domain.Progress, bool) {
	key := Key(formID)
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("failed to read progress", "form_id", formID, "err", err)
		}
		return nil, false
	}

	var p domain.Progress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Warn("discarding unreadable progress", "form_id", formID, "err", err)
		s.discard(ctx, key)
		return nil, false
	}

	age := s.now().Sub(time.UnixMilli(p.Timestamp))
	if age > s.retention {
		s.logger.Info("discarding expired progress", "form_id", formID, "age", age)
		s.discard(ctx, key)
		return nil, false
	}

	p.FormID = formID
	if p.Answers == nil {
		p.Answers = domain.AnswerMap{}
	}
	return &p, true
}

// Clear deletes the snapshot for formID.
func (s *Store) Clear(ctx context.Context, formID string) error {
	key := Key(formID)
	return s.withLock(ctx, key, func(ctx context.Context) error {
		return s.kv.Remove(ctx, key)
	})
}

// List returns the form ids that have a stored snapshot. The backing store
// must implement ports.KeyLister.
func (s *Store) List(ctx context.Context) ([]string, error) {
	lister, ok := s.kv.(ports.KeyLister)
	if !ok {
		return nil, fmt.Errorf("progress backend %T cannot list keys", s.kv)
	}
	keys, err := lister.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, KeyPrefix))
	}
	return ids, nil
}

func (s *Store) discard(ctx context.Context, key string) {
	err := s.withLock(ctx, key, func(ctx context.Context) error {
		return s.kv.Remove(ctx, key)
	})
	if err != nil {
		s.logger.Warn("failed to delete progress", "key", key, "err", err)
	}
}

func (s *Store) acquire(key string) *lockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.locks[key]
	if !ok {
		entry = &lockEntry{}
		s.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (s *Store) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(s.locks, key)
	}
}

// withLock runs fn holding the in-process lock for key and, when a locker is
// configured, the distributed one as well.
func (s *Store) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := s.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		s.release(key)
	}()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, key, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				s.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
