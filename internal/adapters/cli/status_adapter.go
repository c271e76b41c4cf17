// Package cli contains thin adapters translating CLI operations to
// service calls and rendering their results for the terminal.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/surveyforge/internal/ports/primary"
)

// StatusAdapter renders autosave status for the terminal.
type StatusAdapter struct {
	service primary.Autosave
	out     io.Writer
}

// NewStatusAdapter creates a new StatusAdapter with the given service.
func NewStatusAdapter(service primary.Autosave, out io.Writer) *StatusAdapter {
	return &StatusAdapter{
		service: service,
		out:     out,
	}
}

// Show renders the current save status.
func (a *StatusAdapter) Show() primary.AutosaveStatus {
	status := a.service.Status()

	fmt.Fprintf(a.out, "Save status: %s\n", renderState(status.State))
	if status.DraftID != "" {
		fmt.Fprintf(a.out, "Draft:       %s (version %d, %d saves)\n",
			status.DraftID, status.Version, status.SaveCount)
	}
	if status.LastSavedAt != "" {
		fmt.Fprintf(a.out, "Last saved:  %s\n", formatSavedAt(status.LastSavedAt))
	}
	if status.LastError != "" {
		fmt.Fprintf(a.out, "Last error:  %s\n", color.New(color.FgRed).Sprint(status.LastError))
	}

	return status
}

// StatusLine returns a one-line summary suitable for a prompt header.
func (a *StatusAdapter) StatusLine() string {
	status := a.service.Status()

	switch status.State {
	case primary.StateSaving:
		return renderState(status.State) + "..."
	case primary.StateSaved:
		if status.LastSavedAt != "" {
			return fmt.Sprintf("%s at %s", renderState(status.State), formatSavedAt(status.LastSavedAt))
		}
		return renderState(status.State)
	case primary.StateError:
		return fmt.Sprintf("%s: %s", renderState(status.State), status.LastError)
	case primary.StateConflict:
		return renderState(status.State) + ": draft was changed elsewhere"
	default:
		return renderState(status.State)
	}
}

// ShowConflict renders the two sides of a version conflict so the user
// can choose a resolution. Returns false when no conflict is pending.
func (a *StatusAdapter) ShowConflict() bool {
	theirs := a.service.Conflict()
	if theirs == nil {
		fmt.Fprintln(a.out, "No conflict to resolve.")
		return false
	}

	status := a.service.Status()

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, color.New(color.FgHiMagenta).Sprint("This draft was changed in another session."))
	fmt.Fprintf(a.out, "  Your copy:   version %d\n", status.Version)
	fmt.Fprintf(a.out, "  Their copy:  version %d, step %d, updated %s\n",
		theirs.Version, theirs.CurrentStep, theirs.UpdatedAt)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Choose [k]eep mine or [t]ake theirs.")

	return true
}

func renderState(state primary.AutosaveState) string {
	switch state {
	case primary.StateSaving:
		return color.New(color.FgYellow).Sprint("saving")
	case primary.StateSaved:
		return color.New(color.FgGreen).Sprint("saved")
	case primary.StateError:
		return color.New(color.FgRed).Sprint("save failed")
	case primary.StateConflict:
		return color.New(color.FgHiMagenta).Sprint("conflict")
	default:
		return "idle"
	}
}

// formatSavedAt shortens an RFC3339 timestamp to a local clock time.
func formatSavedAt(savedAt string) string {
	parsed, err := time.Parse(time.RFC3339, savedAt)
	if err != nil {
		return savedAt
	}
	return parsed.Local().Format("15:04:05")
}
