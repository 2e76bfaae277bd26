package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/formflow/pkg/domain"
)

// DefaultSubmitTimeout bounds one POST to the submit endpoint.
const DefaultSubmitTimeout = 15 * time.Second

const maxErrorBody = 4 << 10

// Submitter posts completed answers as JSON to a remote endpoint.
type Submitter struct {
	url     string
	client  *http.Client
	headers http.Header
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) SubmitterOption {
	return func(s *Submitter) {
		s.client = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.client = &http.Client{Timeout: d}
	}
}

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) SubmitterOption {
	return func(s *Submitter) {
		s.headers.Add(key, value)
	}
}

func NewSubmitter(url string, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		url:     url,
		client:  &http.Client{Timeout: DefaultSubmitTimeout},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type submitPayload struct {
	FormID  string           `json:"formId"`
	Answers domain.AnswerMap `json:"answers"`
}

// Submit implements ports.Submitter. Failures are returned as
// *domain.SubmitError carrying the kind implied by the response status.
func (s *Submitter) Submit(ctx context.Context, formID string, answers domain.AnswerMap) error {
	body, err := json.Marshal(submitPayload{FormID: formID, Answers: answers})
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.SubmitError{Kind: domain.SubmitErrConnectivity, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	statusErr := fmt.Errorf("submit endpoint returned %s", resp.Status)
	msg := readErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &domain.SubmitError{Kind: domain.SubmitErrValidation, Message: msg, Err: statusErr}
	case http.StatusNotFound, http.StatusGone:
		return &domain.SubmitError{Kind: domain.SubmitErrNotFound, Message: msg, Err: statusErr}
	case http.StatusConflict:
		return &domain.SubmitError{Kind: domain.SubmitErrDuplicate, Message: msg, Err: statusErr}
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &domain.SubmitError{Kind: domain.SubmitErrConnectivity, Message: msg, Err: statusErr}
	default:
		return &domain.SubmitError{Kind: domain.SubmitErrUnknown, Message: msg, Err: statusErr}
	}
}

// readErrorMessage extracts "message" or "error" from a JSON body, or the
// body itself when it is short plain text.
func readErrorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
