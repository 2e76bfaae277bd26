// Package sanitize cleans free-text answers before they enter an answer map.
package sanitize

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxInputSize is 4KB (conservative default).
const DefaultMaxInputSize = 4096

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer enforces a size limit, rejects invalid UTF-8, strips control
// characters and, unless disabled, strips HTML markup.
type Sanitizer struct {
	maxSize int
	policy  *bluemonday.Policy
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithMaxSize sets the byte limit. Non-positive values keep the default.
func WithMaxSize(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithoutMarkupStripping keeps HTML markup in answers.
func WithoutMarkupStripping() Option {
	return func(s *Sanitizer) {
		s.policy = nil
	}
}

// New creates a Sanitizer.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		maxSize: DefaultMaxInputSize,
		policy:  bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Text cleans one answer. Oversized input is rejected rather than truncated.
func (s *Sanitizer) Text(input string) (string, error) {
	if len(input) > s.maxSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), s.maxSize)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	out := stripControl(input)
	if s.policy != nil {
		out = s.stripMarkup(out)
	}
	return out, nil
}

// Value cleans v when it is a string and returns other values unchanged.
func (s *Sanitizer) Value(v any) (any, error) {
	str, ok := v.(string)
	if !ok {
		return v, nil
	}
	return s.Text(str)
}

// stripMarkup removes tags and then undoes entity escaping, repeating until
// the text is stable so escaped markup cannot survive as real markup.
func (s *Sanitizer) stripMarkup(input string) string {
	if !strings.ContainsAny(input, "<>&") {
		return input
	}
	text := input
	for i := 0; i < 3; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			break
		}
		text = next
	}
	return text
}

// stripControl drops control characters except newline, tab and carriage return.
func stripControl(input string) string {
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
