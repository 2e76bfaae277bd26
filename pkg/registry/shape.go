package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/formflow/pkg/domain"
)

// CheckShape reports whether value has the kind the shape expects.
// nil is accepted by every shape; emptiness is judged separately.
func CheckShape(shape Shape, value any) bool {
	if value == nil {
		return true
	}
	switch shape {
	case ShapeString:
		_, ok := value.(string)
		return ok
	case ShapeBoolean:
		_, ok := value.(bool)
		return ok
	case ShapeNumber:
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return true
		}
		_, ok := AsInt(value)
		return ok
	case ShapeFile:
		_, ok := FilesOf(value)
		return ok
	default:
		return true
	}
}

// IsEmpty reports whether value counts as unanswered for the shape.
// A boolean is empty unless it is true.
func IsEmpty(shape Shape, value any) bool {
	if value == nil {
		return true
	}
	switch shape {
	case ShapeString:
		s, _ := value.(string)
		return strings.TrimSpace(s) == ""
	case ShapeBoolean:
		b, _ := value.(bool)
		return !b
	case ShapeNumber:
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s) == ""
		}
		return false
	case ShapeFile:
		files, _ := FilesOf(value)
		return len(files) == 0
	default:
		return true
	}
}

// AsInt converts whole numbers from Go, JSON and text sources.
func AsInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float32:
		return wholeFloat(float64(v))
	case float64:
		return wholeFloat(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return wholeFloat(f)
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func wholeFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// FilesOf extracts file metadata from the accepted answer encodings:
// FileAnswer, *FileAnswer, []FileAnswer and their JSON-decoded map forms.
func FilesOf(value any) ([]domain.FileAnswer, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case domain.FileAnswer:
		return []domain.FileAnswer{v}, true
	case *domain.FileAnswer:
		if v == nil {
			return nil, true
		}
		return []domain.FileAnswer{*v}, true
	case []domain.FileAnswer:
		return v, true
	case map[string]any:
		f, err := fileFromMap(v)
		if err != nil {
			return nil, false
		}
		return []domain.FileAnswer{f}, true
	case []any:
		out := make([]domain.FileAnswer, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			f, err := fileFromMap(m)
			if err != nil {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	default:
		return nil, false
	}
}

func fileFromMap(m map[string]any) (domain.FileAnswer, error) {
	var f domain.FileAnswer
	name, ok := m["name"].(string)
	if !ok {
		return f, fmt.Errorf("file answer has no name")
	}
	f.Name = name
	if mt, ok := m["mimeType"].(string); ok {
		f.MimeType = mt
	} else if mt, ok := m["type"].(string); ok {
		f.MimeType = mt
	}
	if raw, ok := m["size"]; ok {
		size, ok := AsInt(raw)
		if !ok || size < 0 {
			return f, fmt.Errorf("file answer has invalid size")
		}
		f.Size = int64(size)
	}
	return f, nil
}
