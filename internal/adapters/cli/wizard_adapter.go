package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/surveyforge/internal/ports/primary"
)

// WizardAdapter renders wizard navigation for the terminal.
type WizardAdapter struct {
	service primary.Wizard
	out     io.Writer
}

// NewWizardAdapter creates a new WizardAdapter with the given service.
func NewWizardAdapter(service primary.Wizard, out io.Writer) *WizardAdapter {
	return &WizardAdapter{
		service: service,
		out:     out,
	}
}

// ShowProgress renders the step list with completion and position markers.
func (a *WizardAdapter) ShowProgress() primary.WizardState {
	state := a.service.State()

	completed := make(map[int]bool, len(state.CompletedSteps))
	for _, step := range state.CompletedSteps {
		completed[step] = true
	}

	fmt.Fprintln(a.out)
	for i, step := range state.Steps {
		marker := "  "
		switch {
		case i == state.CurrentStep:
			marker = color.New(color.FgHiMagenta).Sprint("→ ")
		case completed[i]:
			marker = color.New(color.FgGreen).Sprint("✓ ")
		}
		fmt.Fprintf(a.out, "%s%d. %s\n", marker, i+1, step.Title)
	}
	fmt.Fprintln(a.out)

	return state
}

// ShowStep renders the current step's heading and description.
func (a *WizardAdapter) ShowStep() primary.WizardStepInfo {
	state := a.service.State()
	step := state.Steps[state.CurrentStep]

	fmt.Fprintf(a.out, "Step %d of %d: %s\n",
		state.CurrentStep+1, len(state.Steps), color.New(color.FgHiBlue).Sprint(step.Title))
	if step.Description != "" {
		fmt.Fprintf(a.out, "%s\n", step.Description)
	}
	fmt.Fprintln(a.out)

	return step
}

// Next advances to the next step. Validation failures are reported via
// ValidationFailed, not here.
func (a *WizardAdapter) Next(ctx context.Context) (bool, error) {
	advanced, err := a.service.Next(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to advance: %w", err)
	}
	return advanced, nil
}

// Previous moves back one step.
func (a *WizardAdapter) Previous(ctx context.Context) bool {
	moved := a.service.Previous(ctx)
	if !moved {
		fmt.Fprintln(a.out, "Already at the first step.")
	}
	return moved
}

// Jump moves directly to step n (1-based as the user sees it).
func (a *WizardAdapter) Jump(ctx context.Context, humanStep int) bool {
	moved := a.service.GoToStep(ctx, humanStep-1)
	if !moved {
		fmt.Fprintf(a.out, "Step %d is not available yet. Complete the steps before it first.\n", humanStep)
	}
	return moved
}

// Finish validates and completes the wizard.
func (a *WizardAdapter) Finish(ctx context.Context) (bool, error) {
	done, err := a.service.Complete(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to complete: %w", err)
	}
	if done {
		fmt.Fprintf(a.out, "%s Survey created.\n", color.New(color.FgGreen).Sprint("✓"))
	}
	return done, nil
}

// ValidationFailed reports a step validation failure. Wire it to the
// wizard service's OnValidationFailed hook; step is 0-based and rendered
// 1-based as the user sees it.
func (a *WizardAdapter) ValidationFailed(step int, reason string) {
	fmt.Fprintf(a.out, "%s step %d: %s\n", color.New(color.FgRed).Sprint("✗"), step+1, reason)
}
