// Package wizard contains the pure business logic for wizard step
// navigation. Guards are pure functions that evaluate preconditions
// without side effects; the stateful machine lives in the app layer.
package wizard

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// NavigationContext provides context for step navigation guards.
// Step indices are 0-based.
type NavigationContext struct {
	Current   int
	Target    int
	StepCount int
	Completed map[int]bool
}

// CompletionContext provides context for the final completion guard.
type CompletionContext struct {
	StepCount int
	Completed map[int]bool
}

// CanAdvance evaluates whether the pointer may move forward from the
// current step. Validation of the step itself happens separately; this
// guard only checks structural position.
// Rules:
// - There must be a next step (the final step is left via Complete).
func CanAdvance(current, stepCount int) GuardResult {
	if current >= stepCount-1 {
		return GuardResult{
			Allowed: false,
			Reason:  "already on the final step",
		}
	}
	return GuardResult{Allowed: true}
}

// CanGoBack evaluates whether the pointer may move back one step.
// Rules:
// - The current step must not be the first.
func CanGoBack(current int) GuardResult {
	if current <= 0 {
		return GuardResult{
			Allowed: false,
			Reason:  "already on the first step",
		}
	}
	return GuardResult{Allowed: true}
}

// CanGoToStep evaluates whether direct navigation to a step is allowed.
// Rules:
// - Target must be in range
// - Target must be the current step or a previously completed one
//   (no skipping ahead without validation)
func CanGoToStep(ctx NavigationContext) GuardResult {
	if ctx.Target < 0 || ctx.Target >= ctx.StepCount {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("step %d is out of range", ctx.Target),
		}
	}
	if ctx.Target == ctx.Current {
		return GuardResult{Allowed: true}
	}
	if !ctx.Completed[ctx.Target] {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("step %d has not been completed yet", ctx.Target),
		}
	}
	return GuardResult{Allowed: true}
}

// CanComplete evaluates whether the wizard may finish.
// Rules:
// - Every step must be in the completed set. The final step's validator
//   is re-run by the machine before this guard is consulted.
func CanComplete(ctx CompletionContext) GuardResult {
	for i := 0; i < ctx.StepCount; i++ {
		if !ctx.Completed[i] {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("step %d has not been completed", i+1),
			}
		}
	}
	return GuardResult{Allowed: true}
}
