package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/formflow/internal/runtime"
	"github.com/aretw0/formflow/pkg/adapters/memory"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/persistence/middleware"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/progress"
	"github.com/aretw0/formflow/pkg/sanitize"
)

func acceptAll() ports.Submitter {
	return ports.SubmitFunc(func(context.Context, string, domain.AnswerMap) error { return nil })
}

func newEngine(t *testing.T, opts ...runtime.Option) *runtime.Engine {
	t.Helper()
	e, err := runtime.NewEngine(contactForm(), acceptAll(), opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngine_RejectsInvalidDefinition(t *testing.T) {
	_, err := runtime.NewEngine(domain.FormDefinition{ID: "x", Fields: []domain.FieldDefinition{
		{ID: "a", Type: domain.FieldShortText},
		{ID: "a", Type: domain.FieldEmail},
	}}, acceptAll())
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
}

func TestEngine_ContactScenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.Equal(t, 2, e.TotalSteps())
	assert.True(t, e.IsMultiStep())
	assert.Equal(t, []string{"name"}, e.Steps()[0].FieldIDs())
	assert.Equal(t, []string{"email"}, e.Steps()[1].FieldIDs())
	assert.Equal(t, "", e.GetValue("name"), "text fields default to the empty string")

	out := e.Next(ctx)
	assert.False(t, out.Moved)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "name", out.Errors[0].FieldID)
	assert.Equal(t, 0, e.Current())
	assert.Equal(t, []string{"Name is required"}, e.StepErrors(0))
	assert.Equal(t, "Name is required", e.FieldError("name"))

	require.NoError(t, e.SetValue("name", "Ada"))
	assert.Empty(t, e.FieldError("name"), "answering clears the field error")

	out = e.Next(ctx)
	assert.True(t, out.Moved)
	assert.False(t, out.AtLastStep)
	assert.Equal(t, 1, e.Current())
	state := e.State()
	assert.True(t, state.CompletedSteps.Has(0))
	assert.True(t, state.VisitedSteps.Has(1))
	assert.Empty(t, e.StepErrors(0))
	assert.Equal(t, 0.5, e.Completion())

	require.NoError(t, e.SetValue("email", "ada@example.com"))
	out = e.Next(ctx)
	assert.False(t, out.Moved)
	assert.True(t, out.AtLastStep, "a validated last step is the cue to submit")
	assert.Equal(t, 1.0, e.Completion())

	sub := e.Submit(ctx)
	assert.True(t, sub.Succeeded)
	assert.Equal(t, domain.SubmitSuccess, e.SubmitStatus())
}

func TestEngine_NavigationOperations(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	assert.False(t, e.GoToStep(ctx, 1), "cannot skip ahead")
	assert.False(t, e.PreviousStep(ctx))
	assert.False(t, e.GoToStep(ctx, -1))
	assert.False(t, e.GoToStep(ctx, 7))

	assert.True(t, e.NextStep(ctx, runtime.StepResult{Valid: true}))
	assert.True(t, e.PreviousStep(ctx))
	assert.True(t, e.CanAccess(1))
	assert.True(t, e.GoToStep(ctx, 1))
	assert.True(t, e.IsLastStep())
	assert.Equal(t, "email", e.CurrentStep().Fields[0].ID)
}

func TestEngine_SetValue(t *testing.T) {
	form := contactForm()
	form.Fields = append(form.Fields,
		domain.FieldDefinition{ID: "intro", Type: domain.FieldStatement},
		domain.FieldDefinition{ID: "terms", Type: domain.FieldLegal},
	)
	e, err := runtime.NewEngine(form, acceptAll(), runtime.WithSanitizer(sanitize.New(sanitize.WithMaxSize(64))))
	require.NoError(t, err)

	assert.ErrorIs(t, e.SetValue("missing", "x"), domain.ErrUnknownField)
	assert.ErrorIs(t, e.SetValue("intro", "x"), domain.ErrNotAnswerable)
	assert.ErrorIs(t, e.SetValue("break", "x"), domain.ErrNotAnswerable)

	require.NoError(t, e.SetValue("name", "<b>Ada</b>\x1b"))
	assert.Equal(t, "Ada", e.GetValue("name"))

	err = e.SetValue("name", string(make([]byte, 65)))
	assert.ErrorIs(t, err, sanitize.ErrInputTooLarge)
	assert.Equal(t, "Ada", e.GetValue("name"), "rejected answers leave the previous value")

	require.NoError(t, e.SetValue("terms", true))
	assert.Equal(t, true, e.GetValue("terms"))
}

func TestEngine_DefinitionIsCopied(t *testing.T) {
	form := contactForm()
	e, err := runtime.NewEngine(form, acceptAll())
	require.NoError(t, err)

	form.Fields[0].Required = false
	form.Fields[0].ID = "renamed"

	assert.Equal(t, "name", e.Definition().Fields[0].ID)
	out := e.Next(context.Background())
	assert.False(t, out.Moved, "the engine keeps validating against its own copy")
}

func TestEngine_SubmitRecordsFieldErrors(t *testing.T) {
	var calls int32
	e, err := runtime.NewEngine(contactForm(), ports.SubmitFunc(func(context.Context, string, domain.AnswerMap) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, err)

	out := e.Submit(context.Background())

	assert.Equal(t, runtime.MsgFixFields, out.Message)
	assert.Equal(t, runtime.MsgFixFields, e.SubmitError())
	assert.Equal(t, "Name is required", e.FieldError("name"))
	assert.Equal(t, "Email is required", e.FieldError("email"))
	assert.Zero(t, atomic.LoadInt32(&calls))

	e.ClearError()
	assert.Empty(t, e.SubmitError())
}

func TestEngine_SubmitGuard(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	e, err := runtime.NewEngine(contactForm(), ports.SubmitFunc(func(context.Context, string, domain.AnswerMap) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, e.SetValue("name", "Ada"))
	require.NoError(t, e.SetValue("email", "ada@example.com"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Submit(context.Background())
	}()
	require.Eventually(t, e.IsSubmitting, time.Second, time.Millisecond)

	second := e.Submit(context.Background())
	assert.False(t, second.Started)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEngine_SubmitFailureClassified(t *testing.T) {
	e, err := runtime.NewEngine(contactForm(), ports.SubmitFunc(func(context.Context, string, domain.AnswerMap) error {
		return errors.New("form not found")
	}))
	require.NoError(t, err)
	require.NoError(t, e.SetValue("name", "Ada"))
	require.NoError(t, e.SetValue("email", "ada@example.com"))

	e.Submit(context.Background())

	assert.Equal(t, runtime.MsgUnavailable, e.SubmitError())
	assert.Equal(t, domain.SubmitErrNotFound, e.SubmitErrorKind())
	assert.Equal(t, domain.SubmitIdle, e.SubmitStatus())
}

func TestEngine_EmptyStepsPassVacuously(t *testing.T) {
	form := domain.FormDefinition{ID: "edges", Fields: []domain.FieldDefinition{
		{ID: "lead", Type: domain.FieldPageBreak},
		{ID: "name", Label: "Name", Type: domain.FieldShortText},
		{ID: "trail", Type: domain.FieldPageBreak},
	}}
	e, err := runtime.NewEngine(form, acceptAll())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Empty(t, e.CurrentStep().Fields)
	out := e.Next(ctx)
	assert.True(t, out.Moved)
	assert.Equal(t, 1, e.Current())
}

func TestEngine_StepHooks(t *testing.T) {
	var mu sync.Mutex
	var log []string
	record := func(prefix string) func(context.Context, *domain.StepEvent) {
		return func(_ context.Context, ev *domain.StepEvent) {
			mu.Lock()
			defer mu.Unlock()
			log = append(log, prefix+":"+string(rune('0'+ev.StepIndex)))
		}
	}
	e := newEngine(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStepEnter:    record("enter"),
		OnStepComplete: record("complete"),
		OnStepRejected: record("reject"),
	}))
	ctx := context.Background()

	e.Start(ctx)
	defer e.Stop(ctx)
	e.Next(ctx)
	require.NoError(t, e.SetValue("name", "Ada"))
	e.Next(ctx)
	e.PreviousStep(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"enter:0", "reject:0", "complete:0", "enter:1", "enter:0"}, log)
}

// Persistence

type countingKV struct {
	ports.KVStore
	sets int32
}

func (c *countingKV) Set(ctx context.Context, key, value string) error {
	atomic.AddInt32(&c.sets, 1)
	return c.KVStore.Set(ctx, key, value)
}

func (c *countingKV) Sets() int32 {
	return atomic.LoadInt32(&c.sets)
}

func TestEngine_RecoversProgress(t *testing.T) {
	kv := memory.NewStore()
	store := progress.NewStore(kv)
	ctx := context.Background()

	store.Save(ctx, domain.Progress{
		FormID:         "contact",
		StepIndex:      1,
		Answers:        domain.AnswerMap{"name": "Ada", "email": "draft@"},
		CompletedSteps: domain.NewStepSet(0),
		VisitedSteps:   domain.NewStepSet(0, 1),
		StepErrors:     domain.StepErrors{1: {"Invalid email address"}},
	})

	e := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0))
	require.NoError(t, e.SetValue("name", "overwritten by recovery"))
	e.Start(ctx)
	defer e.Stop(ctx)

	assert.Equal(t, 1, e.Current())
	assert.Equal(t, "Ada", e.GetValue("name"))
	assert.Equal(t, "draft@", e.GetValue("email"))
	state := e.State()
	assert.Equal(t, []int{0}, state.CompletedSteps.Sorted())
	assert.Equal(t, []int{0, 1}, state.VisitedSteps.Sorted())
	assert.Equal(t, []string{"Invalid email address"}, e.StepErrors(1))
}

func TestEngine_RecoveryKeysEveryField(t *testing.T) {
	ctx := context.Background()

	t.Run("redacted answer comes back as its default", func(t *testing.T) {
		redact, err := middleware.NewRedactionMiddleware([]string{"^email$"})
		require.NoError(t, err)
		store := progress.NewStore(middleware.Chain(memory.NewStore(), redact))

		first := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0))
		first.Start(ctx)
		require.NoError(t, first.SetValue("name", "Ada"))
		require.NoError(t, first.SetValue("email", "ada@example.com"))
		first.Stop(ctx)

		saved, ok := store.Load(ctx, "contact")
		require.True(t, ok)
		require.NotContains(t, saved.Answers, "email")

		second := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0))
		second.Start(ctx)
		defer second.Stop(ctx)

		answers := second.Answers()
		assert.Len(t, answers, 2)
		assert.Equal(t, "Ada", answers["name"])
		require.Contains(t, answers, "email")
		assert.Equal(t, "", answers["email"])
		assert.Equal(t, answers, second.Snapshot().Answers)
	})

	t.Run("unknown ids are dropped", func(t *testing.T) {
		store := progress.NewStore(memory.NewStore())
		store.Save(ctx, domain.Progress{
			FormID:  "contact",
			Answers: domain.AnswerMap{"ghost": 1, "name": "Ada"},
		})

		e := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0))
		e.Start(ctx)
		defer e.Stop(ctx)

		answers := e.Answers()
		assert.NotContains(t, answers, "ghost")
		assert.Len(t, answers, 2)
		assert.Equal(t, "Ada", answers["name"])
		assert.Equal(t, "", answers["email"])
	})
}

// gatedKV blocks Get until release is closed.
type gatedKV struct {
	countingKV
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedKV) Get(ctx context.Context, key string) (string, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.KVStore.Get(ctx, key)
}

func TestEngine_StopWaitsForRestore(t *testing.T) {
	ctx := context.Background()
	kv := &gatedKV{
		countingKV: countingKV{KVStore: memory.NewStore()},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	store := progress.NewStore(kv)
	store.Save(ctx, domain.Progress{
		FormID:       "contact",
		StepIndex:    0,
		Answers:      domain.AnswerMap{"name": "Ada", "email": ""},
		VisitedSteps: domain.NewStepSet(0),
	})

	e := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(5*time.Millisecond))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.Start(ctx)
	}()
	<-kv.entered
	go func() {
		defer wg.Done()
		e.Stop(ctx)
	}()
	time.Sleep(10 * time.Millisecond)
	close(kv.release)
	wg.Wait()

	assert.Equal(t, "Ada", e.GetValue("name"))
	p, ok := store.Load(ctx, "contact")
	require.True(t, ok)
	assert.Equal(t, "Ada", p.Answers["name"], "the final flush keeps the restored answers")

	after := kv.Sets()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, kv.Sets(), "no autosave after Stop")
}

func TestEngine_ExpiredProgressIsIgnored(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	kv := memory.NewStore()
	ctx := context.Background()

	stale := domain.Progress{FormID: "contact", StepIndex: 1, Answers: domain.AnswerMap{"name": "Old"},
		CompletedSteps: domain.NewStepSet(0), VisitedSteps: domain.NewStepSet(0, 1),
		Timestamp: now.Add(-8 * 24 * time.Hour).UnixMilli()}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "progress:contact", string(data)))

	e := newEngine(t, runtime.WithProgressStore(progress.NewStore(kv, progress.WithClock(clock))), runtime.WithAutosaveInterval(0))
	e.Start(ctx)

	assert.Equal(t, 0, e.Current())
	assert.Equal(t, "", e.GetValue("name"))

	_, err = kv.Get(ctx, "progress:contact")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestEngine_StopFlushesSnapshot(t *testing.T) {
	kv := memory.NewStore()
	store := progress.NewStore(kv)
	ctx := context.Background()

	e := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0), runtime.WithSaveDebounce(time.Hour))
	e.Start(ctx)
	require.NoError(t, e.SetValue("name", "Ada"))
	e.Next(ctx)
	e.Stop(ctx)

	p, ok := store.Load(ctx, "contact")
	require.True(t, ok)
	assert.Equal(t, 1, p.StepIndex)
	assert.Equal(t, "Ada", p.Answers["name"])
	assert.True(t, p.CompletedSteps.Has(0))
}

func TestEngine_DebouncedNavigationSave(t *testing.T) {
	kv := &countingKV{KVStore: memory.NewStore()}
	store := progress.NewStore(kv)
	ctx := context.Background()

	e := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0), runtime.WithSaveDebounce(30*time.Millisecond))
	e.Start(ctx)
	defer e.Stop(ctx)

	e.NextStep(ctx, runtime.StepResult{Valid: true})
	e.PreviousStep(ctx)
	e.GoToStep(ctx, 1)

	require.Eventually(t, func() bool { return kv.Sets() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), kv.Sets(), "rapid navigation coalesces into one save")

	p, ok := store.Load(ctx, "contact")
	require.True(t, ok)
	assert.Equal(t, 1, p.StepIndex)
}

func TestEngine_AutosaveTicker(t *testing.T) {
	kv := &countingKV{KVStore: memory.NewStore()}
	var saved int32
	e := newEngine(t,
		runtime.WithProgressStore(progress.NewStore(kv)),
		runtime.WithAutosaveInterval(10*time.Millisecond),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnProgressSaved: func(_ context.Context, ev *domain.ProgressEvent) {
				if ev.Trigger == runtime.TriggerAutosave {
					atomic.AddInt32(&saved, 1)
				}
			},
		}))
	ctx := context.Background()

	e.Start(ctx)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&saved) >= 2 }, time.Second, 5*time.Millisecond)
	e.Stop(ctx)

	after := kv.Sets()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, after, kv.Sets(), "no saves after Stop")
}

func TestEngine_SuccessClearsProgress(t *testing.T) {
	kv := memory.NewStore()
	store := progress.NewStore(kv)
	ctx := context.Background()

	e := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0), runtime.WithSaveDebounce(0))
	e.Start(ctx)
	require.NoError(t, e.SetValue("name", "Ada"))
	require.NoError(t, e.SetValue("email", "ada@example.com"))
	e.Next(ctx)
	require.Eventually(t, func() bool {
		_, ok := store.Load(ctx, "contact")
		return ok
	}, time.Second, 5*time.Millisecond)

	out := e.Submit(ctx)
	require.True(t, out.Succeeded)
	e.Stop(ctx)

	_, ok := store.Load(ctx, "contact")
	assert.False(t, ok, "a successful submission deletes the snapshot and Stop does not rewrite it")
}

func TestEngine_KeepProgressOnSuccess(t *testing.T) {
	store := progress.NewStore(memory.NewStore())
	ctx := context.Background()

	e := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0), runtime.WithKeepProgressOnSuccess())
	e.Start(ctx)
	require.NoError(t, e.SetValue("name", "Ada"))
	require.NoError(t, e.SetValue("email", "ada@example.com"))
	require.True(t, e.Submit(ctx).Succeeded)
	e.Stop(ctx)

	_, ok := store.Load(ctx, "contact")
	assert.True(t, ok)
}

func TestEngine_ClearProgress(t *testing.T) {
	store := progress.NewStore(memory.NewStore())
	ctx := context.Background()

	e := newEngine(t, runtime.WithProgressStore(store), runtime.WithAutosaveInterval(0))
	e.Start(ctx)
	e.Stop(ctx)
	_, ok := store.Load(ctx, "contact")
	require.True(t, ok)

	require.NoError(t, e.ClearProgress(ctx))
	_, ok = store.Load(ctx, "contact")
	assert.False(t, ok)
}

func TestEngine_PersistenceFailureIsSilent(t *testing.T) {
	e := newEngine(t,
		runtime.WithProgressStore(progress.NewStore(brokenKV{})),
		runtime.WithAutosaveInterval(0),
		runtime.WithSaveDebounce(0))
	ctx := context.Background()

	assert.NotPanics(t, func() {
		e.Start(ctx)
		e.NextStep(ctx, runtime.StepResult{Valid: true})
		e.Stop(ctx)
	})
	assert.Equal(t, 1, e.Current())
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, error) { return "", errors.New("io error") }
func (brokenKV) Set(context.Context, string, string) error   { return errors.New("io error") }
func (brokenKV) Remove(context.Context, string) error        { return errors.New("io error") }

func TestEngine_Snapshot(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.SetValue("name", "Ada"))
	e.Next(context.Background())

	snap := e.Snapshot()
	assert.Equal(t, "contact", snap.FormID)
	assert.Equal(t, 1, snap.StepIndex)
	assert.Equal(t, "Ada", snap.Answers["name"])

	snap.Answers["name"] = "mutated"
	assert.Equal(t, "Ada", e.GetValue("name"), "snapshots are copies")
}
