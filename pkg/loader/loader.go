// Package loader reads form definitions and answer sets from YAML or JSON.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/registry"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses a form definition file.
func LoadFile(path string) (domain.FormDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FormDefinition{}, fmt.Errorf("failed to read form definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return domain.FormDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Read parses a form definition from r.
func Read(r io.Reader) (domain.FormDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.FormDefinition{}, err
	}
	return Parse(data)
}

// Parse decodes a form definition. JSON is accepted as a subset of YAML.
// Unknown keys are rejected, rating ranges are normalised and the result
// is checked with FormDefinition.Validate.
func Parse(data []byte) (domain.FormDefinition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.FormDefinition{}, fmt.Errorf("failed to parse form definition: %w", err)
	}
	if raw == nil {
		return domain.FormDefinition{}, fmt.Errorf("%w: empty document", domain.ErrInvalidDefinition)
	}

	var def domain.FormDefinition
	if err := decode(raw, &def); err != nil {
		return domain.FormDefinition{}, fmt.Errorf("%w: %v", domain.ErrInvalidDefinition, err)
	}

	for i := range def.Fields {
		normalizeRating(&def.Fields[i])
	}

	if err := def.Validate(); err != nil {
		return domain.FormDefinition{}, err
	}
	return def, nil
}

// ParseAnswers decodes an answer map from YAML or JSON.
func ParseAnswers(data []byte) (domain.AnswerMap, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.AnswerMap{}, nil
	}
	var answers map[string]any
	if err := yaml.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}
	if answers == nil {
		answers = map[string]any{}
	}
	return domain.AnswerMap(answers), nil
}

// LoadAnswers reads and parses an answers file.
func LoadAnswers(path string) (domain.AnswerMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	return ParseAnswers(data)
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// normalizeRating applies the range rule to authored rating bounds.
func normalizeRating(f *domain.FieldDefinition) {
	if f.Type != domain.FieldNumberRating && f.Type != domain.FieldOpinionScale {
		return
	}
	if f.Constraints.MinRating == nil && f.Constraints.MaxRating == nil {
		return
	}
	lo, hi := registry.RatingBounds(*f)
	f.Constraints.MinRating = &lo
	f.Constraints.MaxRating = &hi
}
