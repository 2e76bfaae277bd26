package domain

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Step is a contiguous group of non-delimiter fields shown together.
type Step struct {
	Index  int               `json:"index"`
	Title  string            `json:"title"`
	Fields []FieldDefinition `json:"fields"`
}

// FieldIDs returns the ids of the step's fields, in order.
func (s Step) FieldIDs() []string {
	ids := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		ids[i] = f.ID
	}
	return ids
}

// StepSet is a set of step indices. It serialises as a sorted JSON array.
type StepSet map[int]struct{}

// NewStepSet builds a set from the given indices.
func NewStepSet(indices ...int) StepSet {
	s := make(StepSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

func (s StepSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

func (s StepSet) Add(i int) {
	s[i] = struct{}{}
}

// Sorted returns the members in ascending order.
func (s StepSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (s StepSet) Clone() StepSet {
	out := make(StepSet, len(s))
	for i := range s {
		out[i] = struct{}{}
	}
	return out
}

func (s StepSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StepSet) UnmarshalJSON(data []byte) error {
	var indices []int
	if err := json.Unmarshal(data, &indices); err != nil {
		return err
	}
	*s = NewStepSet(indices...)
	return nil
}

// StepErrors maps a step index to the messages recorded when it failed validation.
// Keys serialise as decimal strings.
type StepErrors map[int][]string

func (e StepErrors) Clone() StepErrors {
	out := make(StepErrors, len(e))
	for k, v := range e {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (e StepErrors) MarshalJSON() ([]byte, error) {
	raw := make(map[string][]string, len(e))
	for k, v := range e {
		raw[strconv.Itoa(k)] = v
	}
	return json.Marshal(raw)
}

func (e *StepErrors) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(StepErrors, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return err
		}
		out[idx] = v
	}
	*e = out
	return nil
}

// NavigationState is the position of a respondent within a multi-step form.
type NavigationState struct {
	CurrentStepIndex int        `json:"currentStepIndex"`
	VisitedSteps     StepSet    `json:"visitedSteps"`
	CompletedSteps   StepSet    `json:"completedSteps"`
	StepErrors       StepErrors `json:"stepErrors"`
}

// NewNavigationState returns the state of a freshly opened form: step 0, visited.
func NewNavigationState() NavigationState {
	return NavigationState{
		CurrentStepIndex: 0,
		VisitedSteps:     NewStepSet(0),
		CompletedSteps:   NewStepSet(),
		StepErrors:       StepErrors{},
	}
}

// Clone deep-copies the state.
func (n NavigationState) Clone() NavigationState {
	return NavigationState{
		CurrentStepIndex: n.CurrentStepIndex,
		VisitedSteps:     n.VisitedSteps.Clone(),
		CompletedSteps:   n.CompletedSteps.Clone(),
		StepErrors:       n.StepErrors.Clone(),
	}
}

// Progress is the persisted snapshot used to recover an in-progress session.
// It is always written whole.
type Progress struct {
	FormID         string     `json:"formId"`
	StepIndex      int        `json:"stepIndex"`
	Answers        AnswerMap  `json:"answers"`
	CompletedSteps StepSet    `json:"completedSteps"`
	VisitedSteps   StepSet    `json:"visitedSteps"`
	StepErrors     StepErrors `json:"stepErrors"`
	Timestamp      int64      `json:"timestamp"`
}

// Navigation extracts the navigation part of the snapshot.
func (p Progress) Navigation() NavigationState {
	nav := NavigationState{
		CurrentStepIndex: p.StepIndex,
		VisitedSteps:     p.VisitedSteps.Clone(),
		CompletedSteps:   p.CompletedSteps.Clone(),
		StepErrors:       p.StepErrors.Clone(),
	}
	if nav.VisitedSteps == nil {
		nav.VisitedSteps = NewStepSet()
	}
	if nav.CompletedSteps == nil {
		nav.CompletedSteps = NewStepSet()
	}
	if nav.StepErrors == nil {
		nav.StepErrors = StepErrors{}
	}
	return nav
}

// SubmitStatus is the phase of the submission pipeline.
type SubmitStatus string

const (
	SubmitIdle       SubmitStatus = "idle"
	SubmitValidating SubmitStatus = "validating"
	SubmitSubmitting SubmitStatus = "submitting"
	SubmitSuccess    SubmitStatus = "success"
)
