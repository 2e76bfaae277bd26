package runtime

import (
	"github.com/aretw0/formflow/pkg/domain"
)

// StepResult is the outcome of validating the current step's fields,
// supplied by the caller of NextStep.
type StepResult struct {
	Valid  bool
	Errors []string
}

// Navigator is the step navigation state machine.
//
// visited, completed and errored are orthogonal flags per step index. The
// current step is always visited and always in range. Navigator is not safe
// for concurrent use; the session engine serialises access.
type Navigator struct {
	total int
	state domain.NavigationState
}

// NewNavigator starts at step 0 of a form with totalSteps steps (at least one).
func NewNavigator(totalSteps int) *Navigator {
	if totalSteps < 1 {
		totalSteps = 1
	}
	return &Navigator{
		total: totalSteps,
		state: domain.NewNavigationState(),
	}
}

// TotalSteps returns the number of steps.
func (n *Navigator) TotalSteps() int {
	return n.total
}

// Current returns the current step index.
func (n *Navigator) Current() int {
	return n.state.CurrentStepIndex
}

// IsLastStep reports whether the current step is the final one.
func (n *Navigator) IsLastStep() bool {
	return n.state.CurrentStepIndex == n.total-1
}

// State returns a copy of the navigation state.
func (n *Navigator) State() domain.NavigationState {
	return n.state.Clone()
}

// CanAccess reports whether step i may be jumped to: the current step, any
// visited step, or the step right after a completed current step.
func (n *Navigator) CanAccess(i int) bool {
	if i < 0 || i >= n.total {
		return false
	}
	cur := n.state.CurrentStepIndex
	switch {
	case i == cur:
		return true
	case n.state.VisitedSteps.Has(i):
		return true
	case i == cur+1 && n.state.CompletedSteps.Has(cur):
		return true
	default:
		return false
	}
}

// GoToStep moves to step i when it is accessible. It reports whether the
// current step changed.
func (n *Navigator) GoToStep(i int) bool {
	if !n.CanAccess(i) || i == n.state.CurrentStepIndex {
		return false
	}
	n.state.CurrentStepIndex = i
	n.state.VisitedSteps.Add(i)
	return true
}

// NextStep applies the validation outcome of the current step. A valid
// result marks the step completed, clears its errors and advances unless
// this is the last step. An invalid result records the errors and stays.
// It reports whether the current step changed.
func (n *Navigator) NextStep(result StepResult) bool {
	cur := n.state.CurrentStepIndex
	if !result.Valid {
		n.state.StepErrors[cur] = append([]string(nil), result.Errors...)
		return false
	}

	n.state.CompletedSteps.Add(cur)
	delete(n.state.StepErrors, cur)
	if n.IsLastStep() {
		return false
	}
	n.state.CurrentStepIndex = cur + 1
	n.state.VisitedSteps.Add(cur + 1)
	return true
}

// PreviousStep moves back one step. Moving backward needs no validation.
func (n *Navigator) PreviousStep() bool {
	if n.state.CurrentStepIndex == 0 {
		return false
	}
	n.state.CurrentStepIndex--
	n.state.VisitedSteps.Add(n.state.CurrentStepIndex)
	return true
}

// Completion is the fraction of completed steps, in [0, 1].
func (n *Navigator) Completion() float64 {
	done := 0
	for i := range n.state.CompletedSteps {
		if i >= 0 && i < n.total {
			done++
		}
	}
	return float64(done) / float64(n.total)
}

// StepErrors returns the errors recorded for step i.
func (n *Navigator) StepErrors(i int) []string {
	return append([]string(nil), n.state.StepErrors[i]...)
}

// Restore replaces the navigation state wholesale, as when recovering
// persisted progress. Indices outside the form are dropped and the current
// step is clamped into range, so the invariants hold for stale snapshots.
func (n *Navigator) Restore(state domain.NavigationState) {
	next := domain.NewNavigationState()
	next.VisitedSteps = domain.NewStepSet()

	cur := state.CurrentStepIndex
	if cur < 0 {
		cur = 0
	}
	if cur >= n.total {
		cur = n.total - 1
	}
	next.CurrentStepIndex = cur

	for i := range state.VisitedSteps {
		if i >= 0 && i < n.total {
			next.VisitedSteps.Add(i)
		}
	}
	for i := range state.CompletedSteps {
		if i >= 0 && i < n.total {
			next.CompletedSteps.Add(i)
		}
	}
	for i, errs := range state.StepErrors {
		if i >= 0 && i < n.total && len(errs) > 0 {
			next.StepErrors[i] = append([]string(nil), errs...)
		}
	}
	next.VisitedSteps.Add(cur)
	n.state = next
}
