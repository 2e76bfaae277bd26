// Package registry maps each field type to the shape of its answer and to the
// builder of its validation rule.
package registry

import (
	"fmt"

	"github.com/aretw0/formflow/pkg/domain"
)

// Shape is the Go-level kind of value a field type expects as its answer.
type Shape string

const (
	ShapeString  Shape = "string"
	ShapeBoolean Shape = "boolean"
	ShapeNumber  Shape = "number"
	ShapeFile    Shape = "file"
	ShapeNone    Shape = "none"
)

// Rule checks a non-empty, shape-correct answer against the field's
// constraints. It returns the failure message, or "" when the value passes.
type Rule func(value any) string

// RuleBuilder derives the constraint rule of one field.
// A non-nil error reports a constraint that was ignored (e.g. a bad pattern);
// the returned Rule is still usable.
type RuleBuilder func(field domain.FieldDefinition) (Rule, error)

// Entry describes how one field type is answered and validated.
type Entry struct {
	Type domain.FieldType
	// Shape is the expected answer kind.
	Shape Shape
	// Structural types are display-only: always valid, never required.
	Structural bool
	Build      RuleBuilder
}

// Lookup returns the registry entry for a field type.
func Lookup(t domain.FieldType) (Entry, bool) {
	switch t {
	case domain.FieldShortText, domain.FieldLongText:
		return Entry{Type: t, Shape: ShapeString, Build: buildText}, true
	case domain.FieldEmail:
		return Entry{Type: t, Shape: ShapeString, Build: buildEmail}, true
	case domain.FieldWebsite:
		return Entry{Type: t, Shape: ShapeString, Build: buildWebsite}, true
	case domain.FieldPhoneNumber:
		return Entry{Type: t, Shape: ShapeString, Build: buildPhone}, true
	case domain.FieldMultipleChoice, domain.FieldDropdown:
		return Entry{Type: t, Shape: ShapeString, Build: buildChoice}, true
	case domain.FieldYesNo:
		return Entry{Type: t, Shape: ShapeString, Build: buildYesNo}, true
	case domain.FieldNumberRating, domain.FieldOpinionScale:
		return Entry{Type: t, Shape: ShapeNumber, Build: buildRating}, true
	case domain.FieldLegal:
		return Entry{Type: t, Shape: ShapeBoolean, Build: noConstraints}, true
	case domain.FieldFileUpload:
		return Entry{Type: t, Shape: ShapeFile, Build: buildFile}, true
	case domain.FieldStatement, domain.FieldPageBreak, domain.FieldStartingPage, domain.FieldPostSubmission:
		return Entry{Type: t, Shape: ShapeNone, Structural: true, Build: noConstraints}, true
	default:
		return Entry{}, false
	}
}

// MustLookup is Lookup for types already checked by FormDefinition.Validate.
func MustLookup(t domain.FieldType) Entry {
	e, ok := Lookup(t)
	if !ok {
		panic(fmt.Sprintf("registry: unknown field type %q", t))
	}
	return e
}

// DefaultAnswer returns the empty answer for a field type.
func DefaultAnswer(t domain.FieldType) any {
	e, ok := Lookup(t)
	if !ok {
		return nil
	}
	switch e.Shape {
	case ShapeString:
		return ""
	case ShapeBoolean:
		return false
	default:
		return nil
	}
}

// DefaultAnswers returns an answer map keyed by every non-delimiter field,
// each holding its type's empty default.
func DefaultAnswers(def domain.FormDefinition) domain.AnswerMap {
	answers := make(domain.AnswerMap, len(def.Fields))
	for _, f := range def.Fields {
		if f.Type.IsDelimiter() {
			continue
		}
		answers[f.ID] = DefaultAnswer(f.Type)
	}
	return answers
}

func noConstraints(domain.FieldDefinition) (Rule, error) {
	return func(any) string { return "" }, nil
}

// message returns the field's custom message when set, else fallback.
func message(field domain.FieldDefinition, fallback string) string {
	if field.Constraints.CustomMessage != "" {
		return field.Constraints.CustomMessage
	}
	return fallback
}

// chain runs rules in order and returns the first failure.
func chain(rules ...Rule) Rule {
	return func(value any) string {
		for _, r := range rules {
			if r == nil {
				continue
			}
			if msg := r(value); msg != "" {
				return msg
			}
		}
		return ""
	}
}
