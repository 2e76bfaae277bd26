package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/pkg/adapters/file"
	httpadapter "github.com/aretw0/formflow/pkg/adapters/http"
	"github.com/aretw0/formflow/pkg/adapters/memory"
	redisadapter "github.com/aretw0/formflow/pkg/adapters/redis"
	"github.com/aretw0/formflow/pkg/adapters/sqlite"
	"github.com/aretw0/formflow/pkg/persistence/middleware"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/progress"
)

// Backend is an opened progress store with its optional locker.
type Backend struct {
	KV     ports.KVStore
	Locker ports.DistributedLocker
	closer func() error
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// OpenBackend opens the configured store and wraps it with the redaction and
// encryption middlewares. Redaction runs first so dropped answers are never
// encrypted either.
func (c Config) OpenBackend(ctx context.Context) (*Backend, error) {
	b := &Backend{}
	switch c.Store.Backend {
	case BackendMemory:
		b.KV = memory.NewStore()
	case BackendFile:
		b.KV = file.New(c.Store.Dir)
	case BackendSQLite:
		store, err := sqlite.Open(c.Store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.KV, b.closer = store, store.Close
	case BackendRedis:
		store := redisadapter.New(c.Store.Redis.Addr, c.Store.Redis.Password, c.Store.Redis.DB,
			redisadapter.WithPrefix(c.Store.Redis.Prefix),
			redisadapter.WithTTL(c.Progress.Retention),
		)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", c.Store.Redis.Addr, err)
		}
		b.KV, b.closer = store, store.Close
		b.Locker = redisadapter.NewLocker(store.Client(), c.Store.Redis.Prefix+"lock:")
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	var mws []middleware.Middleware
	if len(c.Progress.Redact) > 0 {
		redact, err := middleware.NewRedactionMiddleware(c.Progress.Redact)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: progress.redact: %w", ErrInvalidConfig, err)
		}
		mws = append(mws, redact)
	}
	active, fallback, err := c.Store.keys()
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback}))
	}
	b.KV = middleware.Chain(b.KV, mws...)
	return b, nil
}

// ProgressStore builds the progress store over b.
func (c Config) ProgressStore(b *Backend, logger *slog.Logger) *progress.Store {
	opts := []progress.Option{
		progress.WithRetention(c.Progress.Retention),
		progress.WithLogger(logger),
	}
	if b.Locker != nil {
		opts = append(opts, progress.WithLocker(b.Locker))
	}
	return progress.NewStore(b.KV, opts...)
}

// Submitter returns the HTTP submitter, or nil when no submit.url is set.
func (c Config) Submitter() ports.Submitter {
	if c.Submit.URL == "" {
		return nil
	}
	return httpadapter.NewSubmitter(c.Submit.URL, httpadapter.WithTimeout(c.Submit.Timeout))
}

// EngineOptions returns the engine options implied by the configuration.
// The logger is left to the caller, which usually tags it per session.
func (c Config) EngineOptions(store *progress.Store) []formflow.Option {
	opts := []formflow.Option{
		formflow.WithProgressStore(store),
		formflow.WithSanitizer(c.Sanitizer()),
		formflow.WithAutosaveInterval(c.Autosave.Interval),
		formflow.WithSaveDebounce(c.Autosave.Debounce),
	}
	if s := c.Submitter(); s != nil {
		opts = append(opts, formflow.WithSubmitter(s))
	}
	return opts
}
