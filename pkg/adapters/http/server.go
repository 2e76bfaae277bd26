package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/sanitize"
	"github.com/aretw0/formflow/pkg/session"
)

// Server exposes a session manager over HTTP.
type Server struct {
	sessions *session.Manager
	streams  *StreamManager
	doc      *openapi3.T
	metrics  http.Handler
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithStreams enables GET /sessions/{id}/events. The same manager must be
// passed to session.WithSessionHooks so events reach it.
func WithStreams(streams *StreamManager) Option {
	return func(s *Server) {
		s.streams = streams
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler. Requests are validated against the
// embedded OpenAPI document.
func NewHandler(ctx context.Context, sessions *session.Manager, opts ...Option) (http.Handler, error) {
	doc, err := LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	s := &Server{sessions: sessions, doc: doc, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Get("/health", s.GetHealth)
	r.Get("/forms", s.ListForms)
	r.Post("/sessions", s.validated(s.CreateSession))
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.validated(s.GetSession))
		r.Delete("/", s.validated(s.CloseSession))
		r.Put("/answers/{fieldId}", s.validated(s.SetAnswer))
		r.Post("/next", s.validated(s.Next))
		r.Post("/previous", s.validated(s.Previous))
		r.Post("/goto/{step}", s.validated(s.GoTo))
		r.Post("/submit", s.validated(s.Submit))
		r.Delete("/error", s.validated(s.ClearError))
		r.Get("/events", s.SubscribeEvents)
	})
	return r, nil
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListForms handles the GET /forms request.
func (s *Server) ListForms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Forms())
}

type createSessionRequest struct {
	FormID string `json:"formId"`
}

// CreateSession handles the POST /sessions request.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The session outlives the request.
	sess, err := s.sessions.Create(context.WithoutCancel(r.Context()), body.FormID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, func(ctx context.Context, sess *session.Session) (int, any, error) {
		return http.StatusOK, viewOf(sess), nil
	})
}

// CloseSession handles the DELETE /sessions/{id} request.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Value any `json:"value"`
}

// SetAnswer handles the PUT /sessions/{id}/answers/{fieldId} request.
func (s *Server) SetAnswer(w http.ResponseWriter, r *http.Request) {
	var body answerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fieldID := chi.URLParam(r, "fieldId")
	s.do(w, r, func(ctx context.Context, sess *session.Session) (int, any, error) {
		if err := sess.Engine.SetValue(fieldID, normalizeJSON(body.Value)); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, viewOf(sess), nil
	})
}

// Next handles the POST /sessions/{id}/next request.
func (s *Server) Next(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, func(ctx context.Context, sess *session.Session) (int, any, error) {
		out := sess.Engine.Next(ctx)
		return http.StatusOK, NavigationResult{Moved: out.Moved, AtLastStep: out.AtLastStep, Errors: out.Errors, Session: viewOf(sess)}, nil
	})
}

// Previous handles the POST /sessions/{id}/previous request.
func (s *Server) Previous(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, func(ctx context.Context, sess *session.Session) (int, any, error) {
		moved := sess.Engine.PreviousStep(ctx)
		return http.StatusOK, NavigationResult{Moved: moved, Session: viewOf(sess)}, nil
	})
}

// GoTo handles the POST /sessions/{id}/goto/{step} request. An inaccessible
// step is not an error: the result reports moved=false.
func (s *Server) GoTo(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid step index")
		return
	}
	s.do(w, r, func(ctx context.Context, sess *session.Session) (int, any, error) {
		moved := sess.Engine.GoToStep(ctx, step)
		return http.StatusOK, NavigationResult{Moved: moved, Session: viewOf(sess)}, nil
	})
}

// Submit handles the POST /sessions/{id}/submit request.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// Not run under the session lock: a second submit must observe the
	// in-flight one instead of queueing behind it.
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := sess.Engine.Submit(r.Context())
	status := http.StatusOK
	if !out.Started {
		status = http.StatusConflict
	}
	writeJSON(w, status, SubmitResult{
		Started:     out.Started,
		Succeeded:   out.Succeeded,
		Kind:        out.Kind,
		Message:     out.Message,
		FieldErrors: out.FieldErrors,
		Session:     viewOf(sess),
	})
}

// ClearError handles the DELETE /sessions/{id}/error request.
func (s *Server) ClearError(w http.ResponseWriter, r *http.Request) {
	err := s.sessions.Do(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, sess *session.Session) error {
		sess.Engine.ClearError()
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles the GET /sessions/{id}/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	if s.streams == nil {
		writeError(w, http.StatusNotFound, "event streaming is disabled")
		return
	}
	sessionID := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(sessionID); err != nil {
		s.fail(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(sessionID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) do(w http.ResponseWriter, r *http.Request, fn func(context.Context, *session.Session) (int, any, error)) {
	var (
		status int
		body   any
	)
	err := s.sessions.Do(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, sess *session.Session) error {
		var err error
		status, body, err = fn(ctx, sess)
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, status, body)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrFormNotFound),
		errors.Is(err, domain.ErrUnknownField):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAnswerable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sanitize.ErrInputTooLarge), errors.Is(err, sanitize.ErrInvalidUTF8):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// normalizeJSON turns whole JSON numbers into ints so rating answers
// compare the same as ones set in-process.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case float64:
		if x == float64(int(x)) {
			return int(x)
		}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeJSON(e)
		}
		return out
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
