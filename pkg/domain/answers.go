package domain

// AnswerMap holds one answer per non-delimiter field, keyed by field id.
// Values are string, bool, number, FileAnswer/[]FileAnswer or nil until answered.
type AnswerMap map[string]any

// Clone copies the map. Nested maps and slices (decoded JSON, file lists) are
// copied as well so the clone can be mutated freely.
func (a AnswerMap) Clone() AnswerMap {
	if a == nil {
		return nil
	}
	out := make(AnswerMap, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	case []FileAnswer:
		return append([]FileAnswer(nil), val...)
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// FileAnswer is the metadata of an uploaded file. Content never reaches the engine.
type FileAnswer struct {
	Name     string `json:"name" mapstructure:"name"`
	MimeType string `json:"mimeType,omitempty" mapstructure:"mimeType"`
	Size     int64  `json:"size" mapstructure:"size"`
}
