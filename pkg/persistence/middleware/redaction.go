package middleware

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/aretw0/formflow/pkg/ports"
)

type redactionMiddleware struct {
	next     ports.KVStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that drops answers whose field
// id matches any pattern before the value reaches the next store.
//
// Values are expected to be JSON objects carrying an "answers" object, as
// progress records do. Anything else is stored unchanged. Dropped answers
// come back as their type default after recovery.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.KVStore) ports.KVStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Set(ctx context.Context, key, value string) error {
	return m.next.Set(ctx, key, m.redact(value))
}

func (m *redactionMiddleware) Get(ctx context.Context, key string) (string, error) {
	return m.next.Get(ctx, key)
}

func (m *redactionMiddleware) Remove(ctx context.Context, key string) error {
	return m.next.Remove(ctx, key)
}

func (m *redactionMiddleware) Keys(ctx context.Context, prefix string) ([]string, error) {
	return listKeys(ctx, m.next, prefix)
}

func (m *redactionMiddleware) redact(value string) string {
	if len(m.patterns) == 0 {
		return value
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return value
	}
	raw, ok := record["answers"]
	if !ok {
		return value
	}
	var answers map[string]json.RawMessage
	if err := json.Unmarshal(raw, &answers); err != nil {
		return value
	}

	changed := false
	for id := range answers {
		if m.matches(id) {
			delete(answers, id)
			changed = true
		}
	}
	if !changed {
		return value
	}

	out, err := json.Marshal(answers)
	if err != nil {
		return value
	}
	record["answers"] = out
	data, err := json.Marshal(record)
	if err != nil {
		return value
	}
	return string(data)
}

func (m *redactionMiddleware) matches(id string) bool {
	for _, p := range m.patterns {
		if p.MatchString(id) {
			return true
		}
	}
	return false
}
