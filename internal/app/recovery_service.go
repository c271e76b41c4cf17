package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/surveyforge/internal/core/draft"
	"github.com/example/surveyforge/internal/ports/primary"
	"github.com/example/surveyforge/internal/ports/secondary"
)

// ErrNoDraft is returned by recover/discard when no qualifying draft is held.
var ErrNoDraft = errors.New("no draft available")

// DefaultMaxAge is the recovery eligibility window when none is configured.
const DefaultMaxAge = 168 * time.Hour

// DefaultExpiryWarning is the "expiring soon" threshold.
const DefaultExpiryWarning = 24 * time.Hour

// RecoveryConfig contains dependencies and tuning for the recovery manager.
type RecoveryConfig struct {
	Store secondary.DraftStore
	Scope secondary.OwnerScope

	// MaxAge is the recovery eligibility window. Drafts older than this
	// are treated as absent. Zero means DefaultMaxAge.
	MaxAge time.Duration

	// ExpiryWarning is the remaining-lifetime threshold below which
	// IsExpiringSoon turns true. Zero means DefaultExpiryWarning.
	ExpiryWarning time.Duration

	// OnRecover is invoked with the draft when RecoverDraft applies it.
	// The caller loads step data and the step pointer from it.
	OnRecover func(*primary.Draft)

	// OnDiscard is invoked after DiscardDraft clears local state.
	OnDiscard func()

	// OnExpiryTick, if set, receives periodic expiry recomputations from
	// StartExpiryTicker so the UI can warn as expiry approaches.
	OnExpiryTick func(remaining time.Duration, expiringSoon bool)

	// Logger receives fetch failures, which are swallowed for UX
	// purposes (fail open) but must stay observable. Nil means the
	// standard logger.
	Logger *log.Logger
}

// RecoveryServiceImpl implements the primary.Recovery port.
type RecoveryServiceImpl struct {
	store  secondary.DraftStore
	scope  secondary.OwnerScope
	maxAge time.Duration
	warn   time.Duration

	onRecover    func(*primary.Draft)
	onDiscard    func()
	onExpiryTick func(time.Duration, bool)
	logger       *log.Logger

	// now is a seam for deterministic tests.
	now func() time.Time

	mu           sync.Mutex
	record       *secondary.DraftRecord
	createdAt    time.Time
	bannerHidden bool
	recovered    bool
	// discarded remembers draft IDs discarded this session so a stale
	// in-flight check response cannot resurface them.
	discarded map[string]bool
}

// NewRecoveryService creates a new draft recovery manager.
func NewRecoveryService(cfg RecoveryConfig) *RecoveryServiceImpl {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	warn := cfg.ExpiryWarning
	if warn <= 0 {
		warn = DefaultExpiryWarning
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &RecoveryServiceImpl{
		store:        cfg.Store,
		scope:        cfg.Scope,
		maxAge:       maxAge,
		warn:         warn,
		onRecover:    cfg.OnRecover,
		onDiscard:    cfg.OnDiscard,
		onExpiryTick: cfg.OnExpiryTick,
		logger:       logger,
		now:          time.Now,
		discarded:    make(map[string]bool),
	}
}

// CheckForDrafts queries the store for a resumable draft in the owner
// scope. Expired drafts and fetch failures both resolve to "no draft" -
// the user is never blocked from starting fresh. Fetch failures are
// logged.
func (s *RecoveryServiceImpl) CheckForDrafts(ctx context.Context) (primary.RecoveryState, error) {
	record, err := s.store.FetchByOwner(ctx, s.scope)
	if err != nil {
		if !errors.Is(err, secondary.ErrNotFound) {
			s.logger.Printf("draft recovery check failed (treating as no draft): %v", err)
		}
		return s.State(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A discard issued while this check was in flight wins.
	if s.discarded[record.ID] {
		return s.stateLocked(), nil
	}

	if record.Status != string(draft.StatusActive) {
		return s.stateLocked(), nil
	}

	createdAt, err := time.Parse(time.RFC3339, record.CreatedAt)
	if err != nil {
		s.logger.Printf("draft %s has unparseable created_at %q (treating as no draft)", record.ID, record.CreatedAt)
		return s.stateLocked(), nil
	}

	if draft.IsExpired(createdAt, s.maxAge, s.now()) {
		return s.stateLocked(), nil
	}

	s.record = record
	s.createdAt = createdAt
	s.recovered = false
	return s.stateLocked(), nil
}

// RecoverDraft loads the held draft back into the caller's session via
// the OnRecover hook and marks it recovered at the store. Idempotent:
// calling it twice applies state exactly once.
func (s *RecoveryServiceImpl) RecoverDraft(ctx context.Context) (primary.RecoveryState, error) {
	s.mu.Lock()
	if s.record == nil {
		s.mu.Unlock()
		return s.State(), ErrNoDraft
	}
	if s.recovered {
		state := s.stateLocked()
		s.mu.Unlock()
		return state, nil
	}
	s.recovered = true
	s.bannerHidden = true
	record := s.record
	s.mu.Unlock()

	if s.onRecover != nil {
		s.onRecover(recordToDraft(record))
	}

	// The status transition is bookkeeping; failing to record it must
	// not undo a recovery that already applied locally.
	if draft.CanTransition(draft.Status(record.Status), draft.StatusRecovered) {
		if err := s.store.MarkRecovered(ctx, record.ID); err != nil {
			s.logger.Printf("failed to mark draft %s recovered: %v", record.ID, err)
		}
	}

	return s.State(), nil
}

// DiscardDraft marks the draft discarded at the store and clears local
// recovery state. The draft ID is remembered for the session so a stale
// check response cannot offer it again.
func (s *RecoveryServiceImpl) DiscardDraft(ctx context.Context) error {
	s.mu.Lock()
	if s.record == nil {
		s.mu.Unlock()
		return ErrNoDraft
	}
	record := s.record
	s.discarded[record.ID] = true
	s.record = nil
	s.createdAt = time.Time{}
	s.recovered = false
	s.mu.Unlock()

	err := s.store.Discard(ctx, record.ID)

	if s.onDiscard != nil {
		s.onDiscard()
	}

	if err != nil && !errors.Is(err, secondary.ErrNotFound) {
		return fmt.Errorf("failed to discard draft %s: %w", record.ID, err)
	}
	return nil
}

// HideBanner dismisses the recovery prompt for this session. The draft
// itself is untouched and may resurface on the next load.
func (s *RecoveryServiceImpl) HideBanner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bannerHidden = true
}

// State returns the recovery state with freshly computed age and expiry.
func (s *RecoveryServiceImpl) State() primary.RecoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *RecoveryServiceImpl) stateLocked() primary.RecoveryState {
	if s.record == nil {
		return primary.RecoveryState{}
	}
	now := s.now()
	return primary.RecoveryState{
		HasDraft:        true,
		Draft:           recordToDraft(s.record),
		DraftAge:        draft.RelativeAge(s.createdAt, now),
		ShowBanner:      !s.bannerHidden,
		TimeUntilExpiry: draft.TimeUntilExpiry(s.createdAt, s.maxAge, now),
		IsExpiringSoon:  draft.IsExpiringSoon(s.createdAt, s.maxAge, s.warn, now),
	}
}

// StartExpiryTicker recomputes expiry on an interval and feeds the
// OnExpiryTick hook until the context is cancelled. Derived continuously,
// not only at load, so the UI can warn as expiry approaches.
func (s *RecoveryServiceImpl) StartExpiryTicker(ctx context.Context, interval time.Duration) {
	if s.onExpiryTick == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				state := s.State()
				if state.HasDraft {
					s.onExpiryTick(state.TimeUntilExpiry, state.IsExpiringSoon)
				}
			}
		}
	}()
}
