package formflow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/internal/runtime"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/loader"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/progress"
	"github.com/aretw0/formflow/pkg/sanitize"
)

type (
	// Engine is one form-filling session.
	Engine = runtime.Engine
	// StepResult is the validation outcome handed to NextStep.
	StepResult = runtime.StepResult
	// NextOutcome reports what Engine.Next did.
	NextOutcome = runtime.NextOutcome
	// SubmitOutcome reports what Engine.Submit did.
	SubmitOutcome = runtime.SubmitOutcome
)

type config struct {
	submitter     ports.Submitter
	kv            ports.KVStore
	store         *progress.Store
	locker        ports.DistributedLocker
	retention     time.Duration
	sanitizer     *sanitize.Sanitizer
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	autosave      *time.Duration
	debounce      *time.Duration
	keepOnSuccess bool
}

// Option defines a functional option for configuring an Engine.
type Option func(*config)

// WithSubmitter sets the collaborator that receives completed answers.
func WithSubmitter(s ports.Submitter) Option {
	return func(c *config) {
		c.submitter = s
	}
}

// WithStore persists progress in kv under "progress:<formId>".
func WithStore(kv ports.KVStore) Option {
	return func(c *config) {
		c.kv = kv
	}
}

// WithProgressStore uses a preconfigured progress store. It takes precedence
// over WithStore, WithRetention and WithLocker.
func WithProgressStore(store *progress.Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithRetention overrides the 7 day recovery window.
func WithRetention(d time.Duration) Option {
	return func(c *config) {
		c.retention = d
	}
}

// WithLocker serialises progress writes across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(c *config) {
		c.locker = l
	}
}

// WithSanitizer cleans text answers on SetValue.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(c *config) {
		c.sanitizer = s
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithAutosaveInterval sets the recurring save period. Zero disables it.
func WithAutosaveInterval(d time.Duration) Option {
	return func(c *config) {
		c.autosave = &d
	}
}

// WithSaveDebounce sets the delay of the post-navigation save.
func WithSaveDebounce(d time.Duration) Option {
	return func(c *config) {
		c.debounce = &d
	}
}

// WithKeepProgressOnSuccess keeps the stored snapshot after a successful submission.
func WithKeepProgressOnSuccess() Option {
	return func(c *config) {
		c.keepOnSuccess = true
	}
}

// New creates an engine for def. Call Start before use and Stop when the
// session ends.
func New(def domain.FormDefinition, opts ...Option) (*Engine, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	logger := cfg.logger.With("form", def.ID)

	store := cfg.store
	if store == nil && cfg.kv != nil {
		storeOpts := []progress.Option{progress.WithLogger(logger)}
		if cfg.retention > 0 {
			storeOpts = append(storeOpts, progress.WithRetention(cfg.retention))
		}
		if cfg.locker != nil {
			storeOpts = append(storeOpts, progress.WithLocker(cfg.locker))
		}
		store = progress.NewStore(cfg.kv, storeOpts...)
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithLifecycleHooks(cfg.hooks),
	}
	if store != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithProgressStore(store))
	}
	if cfg.sanitizer != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithSanitizer(cfg.sanitizer))
	}
	if cfg.autosave != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithAutosaveInterval(*cfg.autosave))
	}
	if cfg.debounce != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithSaveDebounce(*cfg.debounce))
	}
	if cfg.keepOnSuccess {
		runtimeOpts = append(runtimeOpts, runtime.WithKeepProgressOnSuccess())
	}

	eng, err := runtime.NewEngine(def, cfg.submitter, runtimeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return eng, nil
}

// NewFromFile loads a YAML or JSON form definition and creates an engine for it.
func NewFromFile(path string, opts ...Option) (*Engine, error) {
	def, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(def, opts...)
}
