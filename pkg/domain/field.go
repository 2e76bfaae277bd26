package domain

import (
	"fmt"
	"strings"
)

// FieldType identifies the kind of question a field asks.
type FieldType string

const (
	FieldShortText      FieldType = "shortText"
	FieldLongText       FieldType = "longText"
	FieldEmail          FieldType = "email"
	FieldWebsite        FieldType = "website"
	FieldPhoneNumber    FieldType = "phoneNumber"
	FieldMultipleChoice FieldType = "multipleChoice"
	FieldDropdown       FieldType = "dropdown"
	FieldYesNo          FieldType = "yesNo"
	FieldNumberRating   FieldType = "numberRating"
	FieldOpinionScale   FieldType = "opinionScale"
	FieldLegal          FieldType = "legal"
	FieldFileUpload     FieldType = "fileUpload"
	FieldStatement      FieldType = "statement"
	FieldPageBreak      FieldType = "pageBreak"
	FieldStartingPage   FieldType = "startingPage"
	FieldPostSubmission FieldType = "postSubmission"
)

// FieldTypes lists every known field type in declaration order.
var FieldTypes = []FieldType{
	FieldShortText, FieldLongText, FieldEmail, FieldWebsite, FieldPhoneNumber,
	FieldMultipleChoice, FieldDropdown, FieldYesNo, FieldNumberRating,
	FieldOpinionScale, FieldLegal, FieldFileUpload, FieldStatement,
	FieldPageBreak, FieldStartingPage, FieldPostSubmission,
}

// IsDelimiter reports whether the type splits a form into steps.
// Delimiters never hold an answer.
func (t FieldType) IsDelimiter() bool {
	return t == FieldPageBreak
}

// Constraints holds the type-specific knobs of a field. Pointer fields are
// unset when nil.
type Constraints struct {
	MinLength         *int     `json:"minLength,omitempty" yaml:"minLength,omitempty" mapstructure:"minLength"`
	MaxLength         *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty" mapstructure:"maxLength"`
	Pattern           string   `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
	MinRating         *int     `json:"minRating,omitempty" yaml:"minRating,omitempty" mapstructure:"minRating"`
	MaxRating         *int     `json:"maxRating,omitempty" yaml:"maxRating,omitempty" mapstructure:"maxRating"`
	AcceptedFileTypes []string `json:"acceptedFileTypes,omitempty" yaml:"acceptedFileTypes,omitempty" mapstructure:"acceptedFileTypes"`
	MaxFileSizeMB     *float64 `json:"maxFileSizeMB,omitempty" yaml:"maxFileSizeMB,omitempty" mapstructure:"maxFileSizeMB"`
	Options           []string `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
	CustomMessage     string   `json:"customMessage,omitempty" yaml:"customMessage,omitempty" mapstructure:"customMessage"`
}

// FieldDefinition is one question of a form.
type FieldDefinition struct {
	ID          string      `json:"id" yaml:"id" mapstructure:"id"`
	Type        FieldType   `json:"type" yaml:"type" mapstructure:"type"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Required    bool        `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Constraints Constraints `json:"constraints,omitempty" yaml:"constraints,omitempty" mapstructure:"constraints"`
}

// DisplayName returns the label, falling back to the id.
func (f FieldDefinition) DisplayName() string {
	if l := strings.TrimSpace(f.Label); l != "" {
		return l
	}
	return f.ID
}

// Clone returns a copy that shares no slices or pointers with f.
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	c := &out.Constraints
	c.MinLength = cloneInt(f.Constraints.MinLength)
	c.MaxLength = cloneInt(f.Constraints.MaxLength)
	c.MinRating = cloneInt(f.Constraints.MinRating)
	c.MaxRating = cloneInt(f.Constraints.MaxRating)
	if f.Constraints.MaxFileSizeMB != nil {
		v := *f.Constraints.MaxFileSizeMB
		c.MaxFileSizeMB = &v
	}
	c.AcceptedFileTypes = append([]string(nil), f.Constraints.AcceptedFileTypes...)
	c.Options = append([]string(nil), f.Constraints.Options...)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// FormDefinition is the ordered list of fields making up a form.
// Order defines reading and step order.
type FormDefinition struct {
	ID     string            `json:"id" yaml:"id" mapstructure:"id"`
	Title  string            `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	Fields []FieldDefinition `json:"fields" yaml:"fields" mapstructure:"fields"`
}

// Clone deep-copies the definition.
func (d FormDefinition) Clone() FormDefinition {
	out := d
	out.Fields = make([]FieldDefinition, len(d.Fields))
	for i, f := range d.Fields {
		out.Fields[i] = f.Clone()
	}
	return out
}

// Field returns the definition with the given id.
func (d FormDefinition) Field(id string) (FieldDefinition, bool) {
	for _, f := range d.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// AnswerFields returns the fields that receive an answer, in order.
func (d FormDefinition) AnswerFields() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !f.Type.IsDelimiter() {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks structural soundness: a form id, non-empty unique field ids
// and known field types.
func (d FormDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: form id is required", ErrInvalidDefinition)
	}
	seen := make(map[string]struct{}, len(d.Fields))
	for i, f := range d.Fields {
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("%w: field #%d has no id", ErrInvalidDefinition, i)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("%w: duplicate field id %q", ErrInvalidDefinition, f.ID)
		}
		seen[f.ID] = struct{}{}
		if !knownType(f.Type) {
			return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidDefinition, f.ID, f.Type)
		}
	}
	return nil
}

func knownType(t FieldType) bool {
	for _, k := range FieldTypes {
		if k == t {
			return true
		}
	}
	return false
}
