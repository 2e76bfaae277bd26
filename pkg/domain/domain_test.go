package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/formflow/pkg/domain"
)

func TestFormDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		def     domain.FormDefinition
		wantErr bool
	}{
		{"valid", domain.FormDefinition{ID: "f", Fields: []domain.FieldDefinition{{ID: "a", Type: domain.FieldEmail}}}, false},
		{"empty form is fine", domain.FormDefinition{ID: "f"}, false},
		{"missing form id", domain.FormDefinition{Fields: []domain.FieldDefinition{{ID: "a", Type: domain.FieldEmail}}}, true},
		{"missing field id", domain.FormDefinition{ID: "f", Fields: []domain.FieldDefinition{{Type: domain.FieldEmail}}}, true},
		{"duplicate field id", domain.FormDefinition{ID: "f", Fields: []domain.FieldDefinition{
			{ID: "a", Type: domain.FieldEmail}, {ID: "a", Type: domain.FieldShortText},
		}}, true},
		{"unknown type", domain.FormDefinition{ID: "f", Fields: []domain.FieldDefinition{{ID: "a", Type: "slider"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormDefinition_CloneIsDeep(t *testing.T) {
	maxLen := 10
	def := domain.FormDefinition{ID: "f", Fields: []domain.FieldDefinition{
		{ID: "a", Type: domain.FieldShortText, Constraints: domain.Constraints{MaxLength: &maxLen, Options: []string{"x"}}},
	}}
	clone := def.Clone()
	*clone.Fields[0].Constraints.MaxLength = 99
	clone.Fields[0].Constraints.Options[0] = "y"

	assert.Equal(t, 10, *def.Fields[0].Constraints.MaxLength)
	assert.Equal(t, "x", def.Fields[0].Constraints.Options[0])
}

func TestAnswerFields_SkipsDelimiters(t *testing.T) {
	def := domain.FormDefinition{ID: "f", Fields: []domain.FieldDefinition{
		{ID: "a", Type: domain.FieldShortText},
		{ID: "br", Type: domain.FieldPageBreak},
		{ID: "intro", Type: domain.FieldStatement},
	}}
	var ids []string
	for _, f := range def.AnswerFields() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"a", "intro"}, ids)
}

func TestAnswerMap_Clone(t *testing.T) {
	orig := domain.AnswerMap{
		"files": []domain.FileAnswer{{Name: "a.pdf", Size: 1}},
		"raw":   map[string]any{"name": "b.png"},
	}
	clone := orig.Clone()
	clone["files"].([]domain.FileAnswer)[0].Name = "changed"
	clone["raw"].(map[string]any)["name"] = "changed"

	assert.Equal(t, "a.pdf", orig["files"].([]domain.FileAnswer)[0].Name)
	assert.Equal(t, "b.png", orig["raw"].(map[string]any)["name"])
	assert.Nil(t, domain.AnswerMap(nil).Clone())
}

func TestProgress_JSONShape(t *testing.T) {
	p := domain.Progress{
		FormID:         "signup",
		StepIndex:      2,
		Answers:        domain.AnswerMap{"name": "Ada"},
		CompletedSteps: domain.NewStepSet(1, 0),
		VisitedSteps:   domain.NewStepSet(2, 0, 1),
		StepErrors:     domain.StepErrors{1: {"Email is required"}},
		Timestamp:      1700000000000,
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"formId": "signup",
		"stepIndex": 2,
		"answers": {"name": "Ada"},
		"completedSteps": [0, 1],
		"visitedSteps": [0, 1, 2],
		"stepErrors": {"1": ["Email is required"]},
		"timestamp": 1700000000000
	}`, string(data))

	var back domain.Progress
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.CompletedSteps.Has(1))
	assert.Equal(t, []string{"Email is required"}, back.StepErrors[1])

	nav := back.Navigation()
	assert.Equal(t, 2, nav.CurrentStepIndex)
	assert.Equal(t, []int{0, 1, 2}, nav.VisitedSteps.Sorted())
}

func TestProgress_NavigationFillsNilSets(t *testing.T) {
	nav := domain.Progress{FormID: "f"}.Navigation()
	assert.NotNil(t, nav.VisitedSteps)
	assert.NotNil(t, nav.CompletedSteps)
	assert.NotNil(t, nav.StepErrors)
}

func TestSubmitError(t *testing.T) {
	inner := assert.AnError
	err := &domain.SubmitError{Kind: domain.SubmitErrConnectivity, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, inner.Error(), err.Error())
	assert.Equal(t, "duplicate", (&domain.SubmitError{Kind: domain.SubmitErrDuplicate}).Error())
	assert.Equal(t, "closed", (&domain.SubmitError{Kind: domain.SubmitErrNotFound, Message: "closed"}).Error())
}
