package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/surveyforge/internal/ports/primary"
)

// RecoveryAdapter renders the draft recovery prompt and translates the
// user's choice into Recovery service calls.
type RecoveryAdapter struct {
	service primary.Recovery
	out     io.Writer
}

// NewRecoveryAdapter creates a new RecoveryAdapter with the given service.
func NewRecoveryAdapter(service primary.Recovery, out io.Writer) *RecoveryAdapter {
	return &RecoveryAdapter{
		service: service,
		out:     out,
	}
}

// ShowBanner checks for a resumable draft and renders the recovery
// prompt when one exists. Returns the state so callers can branch on
// ShowBanner/HasDraft without re-querying.
func (a *RecoveryAdapter) ShowBanner(ctx context.Context) (primary.RecoveryState, error) {
	state, err := a.service.CheckForDrafts(ctx)
	if err != nil {
		return state, fmt.Errorf("failed to check for drafts: %w", err)
	}

	if !state.ShowBanner {
		return state, nil
	}

	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "%s You have an unsaved survey draft from %s.\n",
		color.New(color.FgHiYellow).Sprint("●"), state.DraftAge)
	fmt.Fprintf(a.out, "  Draft %s, step %d, %d autosaves\n",
		state.Draft.ID, state.Draft.CurrentStep, state.Draft.AutoSaveCount)

	if state.IsExpiringSoon {
		fmt.Fprintf(a.out, "  %s\n",
			color.New(color.FgRed).Sprintf("Expires in %s.", formatDuration(state.TimeUntilExpiry)))
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "  [r]esume  [d]iscard  [s]tart fresh")
	fmt.Fprintln(a.out)

	return state, nil
}

// Resume recovers the draft into the current session.
func (a *RecoveryAdapter) Resume(ctx context.Context) (primary.RecoveryState, error) {
	state, err := a.service.RecoverDraft(ctx)
	if err != nil {
		return state, fmt.Errorf("failed to recover draft: %w", err)
	}

	fmt.Fprintf(a.out, "%s Draft %s restored at step %d.\n",
		color.New(color.FgGreen).Sprint("✓"), state.Draft.ID, state.Draft.CurrentStep)

	return state, nil
}

// Discard throws the draft away permanently.
func (a *RecoveryAdapter) Discard(ctx context.Context) error {
	if err := a.service.DiscardDraft(ctx); err != nil {
		return fmt.Errorf("failed to discard draft: %w", err)
	}

	fmt.Fprintln(a.out, "Draft discarded.")
	return nil
}

// StartFresh dismisses the banner for this session without touching
// the stored draft.
func (a *RecoveryAdapter) StartFresh() {
	a.service.HideBanner()
	fmt.Fprintln(a.out, "Starting fresh. Your old draft is kept until it expires.")
}

// formatDuration renders a duration as whole hours or minutes.
func formatDuration(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dm", int(d/time.Minute))
}
