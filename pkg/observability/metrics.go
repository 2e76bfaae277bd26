package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/formflow/pkg/domain"
)

// Metrics holds the collectors fed by engine hooks.
type Metrics struct {
	StepTransitions  *prometheus.CounterVec
	Submissions      *prometheus.CounterVec
	SubmitDuration   *prometheus.HistogramVec
	ProgressSaves    *prometheus.CounterVec
	ProgressRestores *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_step_transitions_total",
				Help: "Step navigation events by outcome",
			},
			[]string{"form_id", "event", "step"},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_submissions_total",
				Help: "Finished submissions by status and error kind",
			},
			[]string{"form_id", "status", "kind"},
		),
		SubmitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formflow_submit_duration_seconds",
				Help:    "Time spent in the submit collaborator",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"form_id"},
		),
		ProgressSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_progress_saves_total",
				Help: "Progress snapshots written by trigger",
			},
			[]string{"form_id", "trigger"},
		),
		ProgressRestores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_progress_restores_total",
				Help: "Sessions resumed from a stored snapshot",
			},
			[]string{"form_id"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.StepTransitions, m.Submissions, m.SubmitDuration, m.ProgressSaves, m.ProgressRestores)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	step := func(ctx context.Context, e *domain.StepEvent) {
		m.StepTransitions.WithLabelValues(e.FormID, string(e.Type), strconv.Itoa(e.StepIndex)).Inc()
	}
	return domain.LifecycleHooks{
		OnStepEnter:    step,
		OnStepComplete: step,
		OnStepRejected: step,
		OnSubmitResult: func(ctx context.Context, e *domain.SubmitEvent) {
			m.Submissions.WithLabelValues(e.FormID, string(e.Status), string(e.Kind)).Inc()
			if e.Duration > 0 {
				m.SubmitDuration.WithLabelValues(e.FormID).Observe(e.Duration.Seconds())
			}
		},
		OnProgressSaved: func(ctx context.Context, e *domain.ProgressEvent) {
			m.ProgressSaves.WithLabelValues(e.FormID, e.Trigger).Inc()
		},
		OnProgressLoaded: func(ctx context.Context, e *domain.ProgressEvent) {
			m.ProgressRestores.WithLabelValues(e.FormID).Inc()
		},
	}
}
