package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
)

// StreamManager fans lifecycle events out to SSE subscribers of a session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(sessionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[sessionID]
	if !ok {
		return
	}
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Hooks returns lifecycle hooks that broadcast every event of a session as JSON.
// It matches session.WithSessionHooks.
func (sm *StreamManager) Hooks(sessionID string) domain.LifecycleHooks {
	step := func(_ context.Context, e *domain.StepEvent) { sm.publish(sessionID, e) }
	submit := func(_ context.Context, e *domain.SubmitEvent) { sm.publish(sessionID, e) }
	progress := func(_ context.Context, e *domain.ProgressEvent) { sm.publish(sessionID, e) }
	return domain.LifecycleHooks{
		OnStepEnter:      step,
		OnStepComplete:   step,
		OnStepRejected:   step,
		OnSubmit:         submit,
		OnSubmitResult:   submit,
		OnProgressSaved:  progress,
		OnProgressLoaded: progress,
	}
}

func (sm *StreamManager) publish(sessionID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("SSE: failed to encode event", "session_id", sessionID, "err", err)
		return
	}
	sm.Broadcast(sessionID, string(data))
}
