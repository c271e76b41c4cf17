// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no draft exists for the requested scope or ID.
var ErrNotFound = errors.New("draft not found")

// ErrVersionConflict is returned when a write's expected version does not
// match the store's current version. Match with errors.Is; the concrete
// error is a *ConflictError carrying the store's current record.
var ErrVersionConflict = errors.New("draft version conflict")

// ConflictError reports an optimistic-concurrency failure. Current holds
// the store's authoritative record at the time of the rejected write so
// the caller can offer a "take theirs" resolution.
type ConflictError struct {
	Current *DraftRecord
}

func (e *ConflictError) Error() string {
	if e.Current != nil {
		return fmt.Sprintf("draft version conflict: store is at version %d", e.Current.Version)
	}
	return "draft version conflict"
}

// Unwrap allows errors.Is(err, ErrVersionConflict).
func (e *ConflictError) Unwrap() error {
	return ErrVersionConflict
}

// OwnerScope identifies the user/company tuple that owns a draft.
// Drafts are looked up by scope, never globally.
type OwnerScope struct {
	UserID    string
	CompanyID string
}

// DraftRecord represents a draft as stored in persistence.
type DraftRecord struct {
	ID            string
	Scope         OwnerScope
	CurrentStep   int // 1-based step pointer
	StepData      map[int]json.RawMessage
	Version       int
	AutoSaveCount int
	Status        string
	CreatedAt     string
	UpdatedAt     string
}

// SaveDraftRequest contains parameters for a create-or-update write.
// An empty DraftID means "create"; the store assigns an ID and returns
// version 1. For updates the store accepts the write only when
// ExpectedVersion equals its current version.
type SaveDraftRequest struct {
	DraftID         string
	Scope           OwnerScope
	CurrentStep     int
	StepData        map[int]json.RawMessage
	ExpectedVersion int
}

// DraftStore defines the secondary port for draft persistence.
type DraftStore interface {
	// FetchByOwner retrieves the active draft for an owner scope.
	// Returns ErrNotFound when no active draft exists. When the store
	// holds several, the most recently updated one is returned.
	FetchByOwner(ctx context.Context, scope OwnerScope) (*DraftRecord, error)

	// Save creates or updates a draft with optimistic concurrency.
	// Accepted writes increment version and auto_save_count. A stale
	// ExpectedVersion fails with *ConflictError (ErrVersionConflict).
	Save(ctx context.Context, req SaveDraftRequest) (*DraftRecord, error)

	// Discard marks a draft as discarded so it is never offered for
	// recovery again. Returns ErrNotFound for unknown IDs.
	Discard(ctx context.Context, id string) error

	// MarkRecovered records that a draft was loaded back into an active
	// session. Recovered drafts are not offered for recovery again.
	MarkRecovered(ctx context.Context, id string) error
}
