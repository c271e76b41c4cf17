package primary

import "context"

// WizardStep describes one step of the wizard. Title and Description are
// opaque display strings. Validate is evaluated lazily, only when the
// user attempts to leave the step.
type WizardStep struct {
	ID          string
	Title       string
	Description string

	// Validate checks whether the step is ready to be left. It returns
	// pass/fail plus an optional human-readable reason. A non-nil error
	// is treated as a failure with the error text as reason; it is
	// reported, never thrown.
	Validate func(ctx context.Context) (ok bool, reason string, err error)
}

// WizardStepInfo is the display view of a step (no validator).
type WizardStepInfo struct {
	ID          string
	Title       string
	Description string
}

// WizardState is the wizard surface exposed to the presentation layer.
// Step indices are 0-based.
type WizardState struct {
	Steps          []WizardStepInfo
	CurrentStep    int
	CompletedSteps []int
	IsFirstStep    bool
	IsLastStep     bool
	Completed      bool
}

// Wizard defines the primary port for the step state machine.
type Wizard interface {
	// Next validates the current step and advances on success. On
	// validation failure the pointer does not move, OnValidationFailed
	// fires with the reason, and Next returns false.
	Next(ctx context.Context) (bool, error)

	// Previous moves back one step. Always allowed; the step being left
	// is not re-validated.
	Previous(ctx context.Context) bool

	// GoToStep jumps directly to step n. Allowed only for the current
	// step or a previously completed one - no skipping ahead without
	// validation.
	GoToStep(ctx context.Context, n int) bool

	// Complete validates the final step and verifies every step is in
	// the completed set. Submission must never proceed on a false
	// result.
	Complete(ctx context.Context) (bool, error)

	// Restore re-enters the wizard at a recovered draft's step with all
	// prior steps marked complete.
	Restore(currentStep int, completed []int) error

	// State returns the current wizard state.
	State() WizardState
}
