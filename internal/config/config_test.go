package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/formflow/internal/config"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/progress"
)

var testKey = strings.Repeat("ab", 32)

func load(t *testing.T, file string) (config.Config, error) {
	t.Helper()
	v, err := config.NewViper(file)
	require.NoError(t, err)
	return config.Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, config.BackendFile, cfg.Store.Backend)
	assert.Equal(t, progress.DefaultRetention, cfg.Progress.Retention)
	assert.Equal(t, 30*time.Second, cfg.Autosave.Interval)
	assert.Equal(t, time.Second, cfg.Autosave.Debounce)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Submit.URL)
	assert.Nil(t, cfg.Submitter())
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FORMFLOW_STORE_BACKEND", "memory")
	t.Setenv("FORMFLOW_PROGRESS_RETENTION", "48h")
	t.Setenv("FORMFLOW_PROGRESS_REDACT", "password, ^ssn$")
	t.Setenv("FORMFLOW_SUBMIT_URL", "http://example.test/submit")
	t.Setenv("FORMFLOW_LOG_LEVEL", "debug")

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 48*time.Hour, cfg.Progress.Retention)
	assert.Equal(t, []string{"password", "^ssn$"}, cfg.Progress.Redact)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NotNil(t, cfg.Submitter())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: sqlite
  sqlite:
    path: progress.db
autosave:
  interval: 0s
server:
  addr: 127.0.0.1:9000
`), 0o644))

	cfg, err := load(t, path)
	require.NoError(t, err)

	assert.Equal(t, config.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "progress.db", cfg.Store.SQLite.Path)
	assert.Zero(t, cfg.Autosave.Interval)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	_, err := config.NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	base, err := load(t, "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "etcd" }},
		{"zero retention", func(c *config.Config) { c.Progress.Retention = 0 }},
		{"negative debounce", func(c *config.Config) { c.Autosave.Debounce = -time.Second }},
		{"zero input size", func(c *config.Config) { c.Sanitize.MaxInputSize = 0 }},
		{"key not hex", func(c *config.Config) { c.Store.EncryptionKey = "zz" }},
		{"key too short", func(c *config.Config) { c.Store.EncryptionKey = "abcd" }},
		{"fallback without active", func(c *config.Config) { c.Store.FallbackKeys = []string{testKey} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func saveAndLoad(t *testing.T, cfg config.Config) (*config.Backend, *domain.Progress) {
	t.Helper()
	ctx := context.Background()

	backend, err := cfg.OpenBackend(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	store := cfg.ProgressStore(backend, logging.NewNop())
	store.Save(ctx, domain.Progress{
		FormID:    "signup",
		Answers:   domain.AnswerMap{"name": "Ada", "password": "hunter2"},
		StepIndex: 1,
	})
	p, ok := store.Load(ctx, "signup")
	require.True(t, ok)
	return backend, p
}

func TestOpenBackend_FileWithRedactionAndEncryption(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		Store:    config.StoreConfig{Backend: config.BackendFile, Dir: dir, EncryptionKey: testKey},
		Progress: config.ProgressConfig{Retention: time.Hour, Redact: []string{"password"}},
		Sanitize: config.SanitizeConfig{MaxInputSize: 100},
	}
	require.NoError(t, cfg.Validate())

	_, p := saveAndLoad(t, cfg)
	assert.Equal(t, "Ada", p.Answers["name"])
	assert.NotContains(t, p.Answers, "password")
	assert.Equal(t, 1, p.StepIndex)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Ada", "stored progress is encrypted")
}

func TestOpenBackend_SQLite(t *testing.T) {
	cfg := config.Config{
		Store:    config.StoreConfig{Backend: config.BackendSQLite, SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "p.db")}},
		Progress: config.ProgressConfig{Retention: time.Hour},
	}
	_, p := saveAndLoad(t, cfg)
	assert.Equal(t, "hunter2", p.Answers["password"])
}

func TestOpenBackend_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{
		Store:    config.StoreConfig{Backend: config.BackendRedis, Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}},
		Progress: config.ProgressConfig{Retention: time.Hour},
	}

	backend, p := saveAndLoad(t, cfg)
	assert.NotNil(t, backend.Locker)
	assert.Equal(t, "Ada", p.Answers["name"])
	assert.True(t, mr.Exists("test:"+progress.Key("signup")))
}

func TestOpenBackend_RedisUnreachable(t *testing.T) {
	cfg := config.Config{
		Store:    config.StoreConfig{Backend: config.BackendRedis, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}},
		Progress: config.ProgressConfig{Retention: time.Hour},
	}
	_, err := cfg.OpenBackend(context.Background())
	assert.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	cfg := config.Config{
		Store:    config.StoreConfig{Backend: config.BackendMemory},
		Progress: config.ProgressConfig{Retention: time.Hour},
		Sanitize: config.SanitizeConfig{MaxInputSize: 10, StripMarkup: true},
		Submit:   config.SubmitConfig{URL: "http://example.test", Timeout: time.Second},
	}
	backend, err := cfg.OpenBackend(context.Background())
	require.NoError(t, err)

	opts := cfg.EngineOptions(cfg.ProgressStore(backend, logging.NewNop()))
	assert.Len(t, opts, 5)

	_, err = cfg.Sanitizer().Text(strings.Repeat("x", 11))
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// restoring the previous one on cleanup (equivalent to testing.T.Chdir
// in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
