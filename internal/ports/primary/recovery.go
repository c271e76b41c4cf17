package primary

import (
	"context"
	"time"
)

// RecoveryState is the recovery surface exposed to the presentation layer.
type RecoveryState struct {
	HasDraft        bool
	Draft           *Draft
	DraftAge        string // human-relative, e.g. "3 hours ago"
	ShowBanner      bool
	TimeUntilExpiry time.Duration
	IsExpiringSoon  bool
}

// Recovery defines the primary port for draft recovery.
type Recovery interface {
	// CheckForDrafts queries the store for a resumable draft in the
	// configured owner scope. Drafts older than the max age are treated
	// as absent. Fetch failures are logged and treated as "no draft":
	// recovery never blocks the user from starting fresh.
	CheckForDrafts(ctx context.Context) (RecoveryState, error)

	// RecoverDraft loads the draft back into the caller's session via
	// the OnRecover hook and dismisses the banner. Idempotent: a second
	// call is a no-op.
	RecoverDraft(ctx context.Context) (RecoveryState, error)

	// DiscardDraft marks the draft discarded at the store and clears
	// local recovery state. The draft is never offered again this
	// session, even if a stale CheckForDrafts response arrives late.
	DiscardDraft(ctx context.Context) error

	// HideBanner dismisses the recovery prompt for this session without
	// discarding the draft.
	HideBanner()

	// State returns the current recovery state with freshly computed
	// age and expiry fields.
	State() RecoveryState
}
