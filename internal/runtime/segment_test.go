package runtime_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/formflow/internal/runtime"
	"github.com/aretw0/formflow/pkg/domain"
)

func field(id string, t domain.FieldType) domain.FieldDefinition {
	return domain.FieldDefinition{ID: id, Type: t}
}

func pageBreak(id, label string) domain.FieldDefinition {
	return domain.FieldDefinition{ID: id, Type: domain.FieldPageBreak, Label: label}
}

func TestSegment_SingleStep(t *testing.T) {
	fields := []domain.FieldDefinition{field("a", domain.FieldShortText), field("b", domain.FieldEmail)}

	seg := runtime.Segment(fields)

	assert.False(t, seg.IsMultiStep)
	require.Len(t, seg.Steps, 1)
	assert.Equal(t, "Step 1", seg.Steps[0].Title)
	assert.Equal(t, []string{"a", "b"}, seg.Steps[0].FieldIDs())
}

func TestSegment_EmptyForm(t *testing.T) {
	seg := runtime.Segment(nil)
	assert.False(t, seg.IsMultiStep)
	require.Len(t, seg.Steps, 1)
	assert.Empty(t, seg.Steps[0].Fields)
}

func TestSegment_Scenario(t *testing.T) {
	short := domain.FieldDefinition{ID: "name", Type: domain.FieldShortText, Required: true}
	email := domain.FieldDefinition{ID: "email", Type: domain.FieldEmail, Required: true}

	seg := runtime.Segment([]domain.FieldDefinition{short, pageBreak("pb", ""), email})

	want := []domain.Step{
		{Index: 0, Title: "Step 1", Fields: []domain.FieldDefinition{short}},
		{Index: 1, Title: "Step 2", Fields: []domain.FieldDefinition{email}},
	}
	assert.True(t, seg.IsMultiStep)
	if diff := cmp.Diff(want, seg.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestSegment_LabelTitlesFollowingStep(t *testing.T) {
	seg := runtime.Segment([]domain.FieldDefinition{
		field("a", domain.FieldShortText),
		pageBreak("pb", "  Contact details "),
		field("b", domain.FieldEmail),
	})
	require.Len(t, seg.Steps, 2)
	assert.Equal(t, "Step 1", seg.Steps[0].Title)
	assert.Equal(t, "Contact details", seg.Steps[1].Title)
}

func TestSegment_LeadingAndTrailingDelimiters(t *testing.T) {
	t.Run("leading", func(t *testing.T) {
		seg := runtime.Segment([]domain.FieldDefinition{pageBreak("pb", ""), field("a", domain.FieldShortText)})
		require.Len(t, seg.Steps, 2)
		assert.Empty(t, seg.Steps[0].Fields)
		assert.Equal(t, []string{"a"}, seg.Steps[1].FieldIDs())
	})

	t.Run("trailing", func(t *testing.T) {
		seg := runtime.Segment([]domain.FieldDefinition{field("a", domain.FieldShortText), pageBreak("pb", "")})
		require.Len(t, seg.Steps, 1)
		assert.False(t, seg.IsMultiStep, "a single step is never multi-step")
		assert.Equal(t, []string{"a"}, seg.Steps[0].FieldIDs())
	})

	t.Run("consecutive", func(t *testing.T) {
		seg := runtime.Segment([]domain.FieldDefinition{
			field("a", domain.FieldShortText), pageBreak("p1", ""), pageBreak("p2", ""), field("b", domain.FieldShortText),
		})
		require.Len(t, seg.Steps, 3)
		assert.Empty(t, seg.Steps[1].Fields)
		assert.Equal(t, 2, seg.Steps[2].Index)
	})
}

func TestSegment_Completeness(t *testing.T) {
	types := []domain.FieldType{domain.FieldShortText, domain.FieldEmail, domain.FieldPageBreak, domain.FieldLegal, domain.FieldStatement}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		n := rng.Intn(12)
		fields := make([]domain.FieldDefinition, n)
		var want []string
		for i := range fields {
			fields[i] = field(fmt.Sprintf("f%d", i), types[rng.Intn(len(types))])
			if !fields[i].Type.IsDelimiter() {
				want = append(want, fields[i].ID)
			}
		}

		seg := runtime.Segment(fields)

		var got []string
		for i, s := range seg.Steps {
			assert.Equal(t, i, s.Index)
			got = append(got, s.FieldIDs()...)
		}
		assert.Equal(t, want, got, "run %d", run)
		assert.NotEmpty(t, seg.Steps)
	}
}
