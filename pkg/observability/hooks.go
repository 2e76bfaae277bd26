package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/formflow/pkg/domain"
)

// LogHooks logs every lifecycle event at info level, or warn for rejected
// steps and failed submissions.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	step := func(ctx context.Context, e *domain.StepEvent) {
		level := slog.LevelInfo
		if e.Type == domain.EventStepRejected {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, string(e.Type), "form_id", e.FormID, "step", e.StepIndex, "errors", len(e.Errors))
	}
	progress := func(ctx context.Context, e *domain.ProgressEvent) {
		logger.Info(string(e.Type), "form_id", e.FormID, "trigger", e.Trigger, "step", e.StepIndex)
	}
	return domain.LifecycleHooks{
		OnStepEnter:    step,
		OnStepComplete: step,
		OnStepRejected: step,
		OnSubmit: func(ctx context.Context, e *domain.SubmitEvent) {
			logger.Info(string(e.Type), "form_id", e.FormID)
		},
		OnSubmitResult: func(ctx context.Context, e *domain.SubmitEvent) {
			if e.Kind != "" {
				logger.Warn(string(e.Type), "form_id", e.FormID, "status", e.Status, "kind", e.Kind, "duration", e.Duration)
				return
			}
			logger.Info(string(e.Type), "form_id", e.FormID, "status", e.Status, "duration", e.Duration)
		},
		OnProgressSaved:  progress,
		OnProgressLoaded: progress,
	}
}

// Combine fans each event out to every non-nil hook in order.
func Combine(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range all {
		out.OnStepEnter = chain(out.OnStepEnter, h.OnStepEnter)
		out.OnStepComplete = chain(out.OnStepComplete, h.OnStepComplete)
		out.OnStepRejected = chain(out.OnStepRejected, h.OnStepRejected)
		out.OnSubmit = chain(out.OnSubmit, h.OnSubmit)
		out.OnSubmitResult = chain(out.OnSubmitResult, h.OnSubmitResult)
		out.OnProgressSaved = chain(out.OnProgressSaved, h.OnProgressSaved)
		out.OnProgressLoaded = chain(out.OnProgressLoaded, h.OnProgressLoaded)
	}
	return out
}

func chain[E any](first, next func(context.Context, E)) func(context.Context, E) {
	if first == nil {
		return next
	}
	if next == nil {
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		next(ctx, e)
	}
}
