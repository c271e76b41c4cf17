// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which the outside world drives the application.
package primary

import (
	"context"
	"encoding/json"
)

// AutosaveState represents the scheduler's save status.
type AutosaveState string

const (
	StateIdle     AutosaveState = "idle"
	StateSaving   AutosaveState = "saving"
	StateSaved    AutosaveState = "saved"
	StateError    AutosaveState = "error"
	StateConflict AutosaveState = "conflict"
)

// DraftPayload is the locally accumulated wizard state submitted to the
// store. StepData contents are opaque to the core; they are passed through
// unmodified.
type DraftPayload struct {
	CurrentStep int // 1-based
	StepData    map[int]json.RawMessage
}

// AutosaveStatus is the status object exposed to the presentation layer.
type AutosaveStatus struct {
	State       AutosaveState
	DraftID     string
	Version     int
	SaveCount   int
	LastSavedAt string // RFC3339, empty if no write has been accepted yet
	LastError   string // message of the most recent failure, empty otherwise
}

// Draft is the presentation-layer view of a persisted draft.
type Draft struct {
	ID            string
	CurrentStep   int
	StepData      map[int]json.RawMessage
	Version       int
	AutoSaveCount int
	Status        string
	CreatedAt     string
	UpdatedAt     string
}

// Autosave defines the primary port for the autosave scheduler.
//
// Writes for a draft are strictly serialized: a second write never starts
// before the first's response is observed. Save calls arriving while a
// write is in flight coalesce into a single pending slot; when the
// in-flight write completes the latest payload is issued immediately.
type Autosave interface {
	// Save records the payload as pending and (re)arms the debounce
	// timer. Only the latest payload survives a debounce window.
	Save(payload DraftPayload)

	// ForceSave bypasses the debounce timer and writes immediately.
	// Used on step changes, explicit "save draft" actions, and teardown.
	ForceSave(ctx context.Context, payload DraftPayload) error

	// Flush writes the pending payload now, if there is one. Step
	// transitions call this so the debounce window never swallows the
	// step being navigated away from.
	Flush(ctx context.Context) error

	// Retry re-attempts the last failed write without waiting for a new
	// debounce cycle.
	Retry(ctx context.Context) error

	// ResolveKeepMine resolves a version conflict by re-issuing the
	// local payload against the store's current version.
	ResolveKeepMine(ctx context.Context) error

	// ResolveTakeTheirs resolves a version conflict by adopting the
	// store's record and dropping local pending changes. The returned
	// draft is what the caller should reload its local state from.
	ResolveTakeTheirs() (*Draft, error)

	// Conflict returns the store's current draft while in conflict
	// state, nil otherwise.
	Conflict() *Draft

	// Status returns the current save status for display.
	Status() AutosaveStatus

	// Close tears the scheduler down: the debounce timer is stopped and,
	// if unsaved state remains, one final forced write is issued.
	// Results of writes still in flight after Close are discarded.
	Close(ctx context.Context) error
}
