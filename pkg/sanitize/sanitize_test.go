package sanitize_test

import (
	"strings"
	"testing"

	"github.com/aretw0/formflow/pkg/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	s := sanitize.New()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Ada Lovelace", "Ada Lovelace"},
		{"keeps newlines and tabs", "line1\n\tline2\r\n", "line1\n\tline2\r\n"},
		{"strips ANSI escape", "red\x1b[31m text", "red[31m text"},
		{"strips NUL and BEL", "a\x00b\x07c", "abc"},
		{"strips tags", "<b>bold</b> move", "bold move"},
		{"drops scripts", `hi<script>alert(1)</script>`, "hi"},
		{"keeps ampersands", "Tom & Jerry", "Tom & Jerry"},
		{"keeps comparison text", "a < b", "a < b"},
		{"escaped markup is stripped too", "&lt;b&gt;x&lt;/b&gt;", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Text(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText_Limits(t *testing.T) {
	s := sanitize.New(sanitize.WithMaxSize(8))

	_, err := s.Text(strings.Repeat("x", 9))
	assert.ErrorIs(t, err, sanitize.ErrInputTooLarge)

	_, err = s.Text("\xff\xfe")
	assert.ErrorIs(t, err, sanitize.ErrInvalidUTF8)
}

func TestText_WithoutMarkupStripping(t *testing.T) {
	s := sanitize.New(sanitize.WithoutMarkupStripping())
	got, err := s.Text("<b>x</b>")
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", got)
}

func TestValue_NonStringPassThrough(t *testing.T) {
	s := sanitize.New()
	for _, v := range []any{nil, true, 3, []string{"a"}} {
		got, err := s.Value(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
