// Package validation derives one composite validator from a form definition.
//
// Rules of a field run in a fixed order: answer shape, then required, then
// the type's constraints (length, pattern, range, domain checks). The first
// violation wins, so each field yields at most one FieldError.
package validation

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/registry"
)

type fieldValidator struct {
	field domain.FieldDefinition
	entry registry.Entry
	rule  registry.Rule
}

// Composite maps field ids to their validation functions.
// It is immutable after Derive and safe for concurrent use.
type Composite struct {
	order  []string
	fields map[string]fieldValidator
}

// Option configures Derive.
type Option func(*deriveConfig)

type deriveConfig struct {
	logger *slog.Logger
}

// WithLogger reports ignored constraints (such as invalid patterns).
func WithLogger(logger *slog.Logger) Option {
	return func(c *deriveConfig) {
		c.logger = logger
	}
}

// Derive builds the composite validator of a form.
// Delimiter fields and unknown types are left out.
func Derive(def domain.FormDefinition, opts ...Option) *Composite {
	cfg := deriveConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Composite{
		order:  make([]string, 0, len(def.Fields)),
		fields: make(map[string]fieldValidator, len(def.Fields)),
	}
	for _, f := range def.Fields {
		if f.Type.IsDelimiter() {
			continue
		}
		entry, ok := registry.Lookup(f.Type)
		if !ok {
			cfg.logger.Warn("skipping field with unknown type", "field_id", f.ID, "type", f.Type)
			continue
		}
		rule, err := entry.Build(f)
		if err != nil {
			cfg.logger.Warn("field constraint ignored", "field_id", f.ID, "err", err)
		}
		c.order = append(c.order, f.ID)
		c.fields[f.ID] = fieldValidator{field: f, entry: entry, rule: rule}
	}
	return c
}

// Validate checks one answer. It returns nil when the value is acceptable or
// the field id is unknown.
func (c *Composite) Validate(fieldID string, value any) *FieldError {
	fv, ok := c.fields[fieldID]
	if !ok {
		return nil
	}
	if msg := fv.check(value); msg != "" {
		return &FieldError{FieldID: fieldID, Message: msg}
	}
	return nil
}

// ValidateAll validates every field of the form against answers, in
// definition order. A missing key is treated as an unanswered field.
func (c *Composite) ValidateAll(answers domain.AnswerMap) []FieldError {
	return c.ValidateFields(c.order, answers)
}

// ValidateFields validates the given fields, in the given order.
func (c *Composite) ValidateFields(fieldIDs []string, answers domain.AnswerMap) []FieldError {
	var errs []FieldError
	for _, id := range fieldIDs {
		if err := c.Validate(id, answers[id]); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// ValidateStep validates the fields of a step. Steps with no fields pass.
func (c *Composite) ValidateStep(step domain.Step, answers domain.AnswerMap) []FieldError {
	return c.ValidateFields(step.FieldIDs(), answers)
}

// FieldIDs returns the validated field ids in definition order.
func (c *Composite) FieldIDs() []string {
	return append([]string(nil), c.order...)
}

func (fv fieldValidator) check(value any) string {
	f := fv.field
	if fv.entry.Structural {
		return ""
	}
	// A boolean only has a meaning when it is required to be true.
	if fv.entry.Shape == registry.ShapeBoolean && !f.Required {
		return ""
	}

	if !registry.CheckShape(fv.entry.Shape, value) {
		return customOr(f, fmt.Sprintf("%s has an invalid value", f.DisplayName()))
	}

	if registry.IsEmpty(fv.entry.Shape, value) {
		if !f.Required {
			return ""
		}
		if f.Type == domain.FieldLegal {
			return customOr(f, fmt.Sprintf("You must accept %s", f.DisplayName()))
		}
		return customOr(f, fmt.Sprintf("%s is required", f.DisplayName()))
	}

	if fv.rule == nil {
		return ""
	}
	return fv.rule(value)
}

func customOr(f domain.FieldDefinition, fallback string) string {
	if f.Constraints.CustomMessage != "" {
		return f.Constraints.CustomMessage
	}
	return fallback
}
