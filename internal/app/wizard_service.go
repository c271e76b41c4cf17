package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/example/surveyforge/internal/core/wizard"
	"github.com/example/surveyforge/internal/ports/primary"
)

// WizardConfig contains the step definitions and callbacks for a wizard
// session.
type WizardConfig struct {
	Steps []primary.WizardStep

	// Autosave, if set, receives a Flush on every successful step
	// transition so navigating away never loses the just-completed
	// step's data to the debounce window. Flush failures surface
	// through autosave status, never block navigation.
	Autosave primary.Autosave

	// OnStepChange fires after the pointer moves, with the new and old
	// 0-based indices.
	OnStepChange func(newStep, oldStep int)

	// OnValidationFailed fires when a step's validator rejects a
	// forward transition.
	OnValidationFailed func(step int, reason string)
}

// WizardServiceImpl implements the primary.Wizard port. It owns the
// ordered step list, the current step pointer, and the completed set;
// transition rules live in the core wizard guards.
type WizardServiceImpl struct {
	steps    []primary.WizardStep
	autosave primary.Autosave
	onChange func(int, int)
	onFailed func(int, string)

	mu        sync.Mutex
	current   int
	completed map[int]bool
	done      bool
}

// NewWizardService creates a wizard positioned on the first step.
func NewWizardService(cfg WizardConfig) (*WizardServiceImpl, error) {
	if len(cfg.Steps) == 0 {
		return nil, errors.New("wizard requires at least one step")
	}
	return &WizardServiceImpl{
		steps:     cfg.Steps,
		autosave:  cfg.Autosave,
		onChange:  cfg.OnStepChange,
		onFailed:  cfg.OnValidationFailed,
		completed: make(map[int]bool),
	}, nil
}

// Next validates the current step and advances on success. The forced
// save is issued before the pointer moves, so no consumer observes the
// new step ahead of the write being queued.
func (s *WizardServiceImpl) Next(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false, errors.New("wizard already completed")
	}
	current := s.current
	if guard := wizard.CanAdvance(current, len(s.steps)); !guard.Allowed {
		s.mu.Unlock()
		return false, errors.New(guard.Reason)
	}
	step := s.steps[current]
	s.mu.Unlock()

	if ok := s.runValidator(ctx, current, step); !ok {
		return false, nil
	}

	s.flush(ctx)

	s.mu.Lock()
	if s.current != current {
		// A concurrent transition won; do not double-advance.
		s.mu.Unlock()
		return false, nil
	}
	s.completed[current] = true
	s.current = current + 1
	newStep := s.current
	s.mu.Unlock()

	s.fireStepChange(newStep, current)
	return true, nil
}

// Previous moves back one step. The step being left is not re-validated
// and its data is untouched.
func (s *WizardServiceImpl) Previous(ctx context.Context) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	if guard := wizard.CanGoBack(s.current); !guard.Allowed {
		s.mu.Unlock()
		return false
	}
	old := s.current
	s.current = old - 1
	newStep := s.current
	s.mu.Unlock()

	s.flush(ctx)
	s.fireStepChange(newStep, old)
	return true
}

// GoToStep jumps directly to step n, allowed only for the current step or
// a previously completed one.
func (s *WizardServiceImpl) GoToStep(ctx context.Context, n int) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	guard := wizard.CanGoToStep(wizard.NavigationContext{
		Current:   s.current,
		Target:    n,
		StepCount: len(s.steps),
		Completed: s.completed,
	})
	if !guard.Allowed {
		s.mu.Unlock()
		return false
	}
	if n == s.current {
		s.mu.Unlock()
		return true
	}
	old := s.current
	s.current = n
	s.mu.Unlock()

	s.flush(ctx)
	s.fireStepChange(n, old)
	return true
}

// Complete validates the final step exactly like Next, then verifies that
// every step is in the completed set. Submission must never proceed on a
// false result.
func (s *WizardServiceImpl) Complete(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return true, nil
	}
	current := s.current
	last := len(s.steps) - 1
	if current != last {
		s.mu.Unlock()
		return false, fmt.Errorf("cannot complete from step %d of %d", current+1, len(s.steps))
	}
	step := s.steps[current]
	s.mu.Unlock()

	if ok := s.runValidator(ctx, current, step); !ok {
		return false, nil
	}

	s.mu.Lock()
	s.completed[current] = true
	guard := wizard.CanComplete(wizard.CompletionContext{
		StepCount: len(s.steps),
		Completed: s.completed,
	})
	if !guard.Allowed {
		s.mu.Unlock()
		if s.onFailed != nil {
			s.onFailed(current, guard.Reason)
		}
		return false, nil
	}
	s.done = true
	s.mu.Unlock()

	s.flush(ctx)
	return true, nil
}

// Restore re-enters the wizard at a recovered draft's step, with every
// earlier step marked complete. currentStep is 0-based.
func (s *WizardServiceImpl) Restore(currentStep int, completed []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if currentStep < 0 || currentStep >= len(s.steps) {
		return fmt.Errorf("step %d is out of range", currentStep)
	}
	s.current = currentStep
	s.completed = make(map[int]bool)
	for _, idx := range completed {
		if idx >= 0 && idx < len(s.steps) {
			s.completed[idx] = true
		}
	}
	return nil
}

// State returns the current wizard state.
func (s *WizardServiceImpl) State() primary.WizardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]primary.WizardStepInfo, len(s.steps))
	for i, step := range s.steps {
		infos[i] = primary.WizardStepInfo{
			ID:          step.ID,
			Title:       step.Title,
			Description: step.Description,
		}
	}

	completed := make([]int, 0, len(s.completed))
	for idx := range s.completed {
		completed = append(completed, idx)
	}
	sort.Ints(completed)

	return primary.WizardState{
		Steps:          infos,
		CurrentStep:    s.current,
		CompletedSteps: completed,
		IsFirstStep:    s.current == 0,
		IsLastStep:     s.current == len(s.steps)-1,
		Completed:      s.done,
	}
}

// runValidator evaluates a step's validator and reports failures through
// the callback. Validator errors are failures with the error text as
// reason - reported, never thrown.
func (s *WizardServiceImpl) runValidator(ctx context.Context, idx int, step primary.WizardStep) bool {
	if step.Validate == nil {
		return true
	}
	ok, reason, err := step.Validate(ctx)
	if err != nil {
		ok = false
		if reason == "" {
			reason = err.Error()
		}
	}
	if !ok {
		if s.onFailed != nil {
			s.onFailed(idx, reason)
		}
		return false
	}
	return true
}

func (s *WizardServiceImpl) flush(ctx context.Context) {
	if s.autosave == nil {
		return
	}
	// Failure is already captured in autosave status.
	_ = s.autosave.Flush(ctx)
}

func (s *WizardServiceImpl) fireStepChange(newStep, oldStep int) {
	if s.onChange != nil {
		s.onChange(newStep, oldStep)
	}
}
