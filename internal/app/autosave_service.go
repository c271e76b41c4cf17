package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/surveyforge/internal/ports/primary"
	"github.com/example/surveyforge/internal/ports/secondary"
)

// ErrConflictUnresolved is returned when a write is requested while a
// version conflict is awaiting explicit resolution. Autosaving never
// writes over an unresolved conflict.
var ErrConflictUnresolved = errors.New("version conflict unresolved: resolve with keep-mine or take-theirs first")

// ErrNothingToRetry is returned by Retry when no failed write is recorded.
var ErrNothingToRetry = errors.New("no failed write to retry")

// ErrSchedulerClosed is returned for operations after Close.
var ErrSchedulerClosed = errors.New("autosave scheduler is closed")

// DefaultDebounce is the autosave debounce interval when none is configured.
const DefaultDebounce = 5 * time.Second

// DefaultRequestTimeout bounds each store write.
const DefaultRequestTimeout = 10 * time.Second

// AutosaveConfig contains dependencies and tuning for the scheduler.
type AutosaveConfig struct {
	Store secondary.DraftStore
	Scope secondary.OwnerScope

	// Debounce is the quiet period after the last Save before a write is
	// issued. Zero means DefaultDebounce.
	Debounce time.Duration

	// RequestTimeout bounds each individual store write. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// OnStatusChange, if set, is invoked after every status transition
	// with a snapshot of the new status. Called without internal locks
	// held; implementations may call back into the scheduler.
	OnStatusChange func(primary.AutosaveStatus)
}

// AutosaveServiceImpl implements the primary.Autosave port.
//
// The serialization model is a single pending-payload slot plus an
// in-flight flag, not a general queue: at most one write is ever in
// flight, and a payload queued during a flight is issued immediately
// after the response lands, latest payload wins.
type AutosaveServiceImpl struct {
	store secondary.DraftStore
	scope secondary.OwnerScope

	debounce time.Duration
	timeout  time.Duration
	onStatus func(primary.AutosaveStatus)

	// afterFunc and now are seams for deterministic tests.
	afterFunc func(d time.Duration, f func()) *time.Timer
	now       func() time.Time

	mu sync.Mutex
	// flightDone is broadcast whenever an in-flight write lands. Close
	// waits on it when unsaved state is queued behind a flight.
	flightDone  *sync.Cond
	timer       *time.Timer
	pending     *primary.DraftPayload
	inFlight    bool
	closed      bool
	state       primary.AutosaveState
	draftID     string
	version     int
	saveCount   int
	lastSavedAt time.Time
	lastErr     error
	lastFailed  *primary.DraftPayload
	conflict    *primary.Draft
}

// NewAutosaveService creates a new autosave scheduler.
func NewAutosaveService(cfg AutosaveConfig) *AutosaveServiceImpl {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	s := &AutosaveServiceImpl{
		store:     cfg.Store,
		scope:     cfg.Scope,
		debounce:  debounce,
		timeout:   timeout,
		onStatus:  cfg.OnStatusChange,
		afterFunc: time.AfterFunc,
		now:       time.Now,
		state:     primary.StateIdle,
	}
	s.flightDone = sync.NewCond(&s.mu)
	return s
}

// AdoptDraft seeds the scheduler with an existing draft's identity so
// subsequent writes continue its version chain. Used after recovery.
func (s *AutosaveServiceImpl) AdoptDraft(d *primary.Draft) {
	if d == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draftID = d.ID
	s.version = d.Version
	s.saveCount = d.AutoSaveCount
}

// Save records the payload as pending and (re)arms the debounce timer.
// A timer already running is reset, never stacked - only the latest
// payload survives the window. While a conflict is unresolved the payload
// is retained but nothing is written.
func (s *AutosaveServiceImpl) Save(payload primary.DraftPayload) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = &payload
	if s.state == primary.StateSaved || s.state == primary.StateError {
		s.state = primary.StateIdle
	}
	if s.state == primary.StateConflict {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.timer = s.afterFunc(s.debounce, s.timerFired)
	s.mu.Unlock()
}

// ForceSave bypasses the debounce timer and writes the payload now,
// through the same serialized path as debounced saves.
func (s *AutosaveServiceImpl) ForceSave(ctx context.Context, payload primary.DraftPayload) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.stopTimerLocked()
	s.pending = &payload
	if s.state == primary.StateConflict {
		s.mu.Unlock()
		return ErrConflictUnresolved
	}
	if s.inFlight {
		// Coalesce: the write loop picks the payload up when the
		// current flight lands.
		s.mu.Unlock()
		return nil
	}
	return s.writeLoopLocked(ctx)
}

// Flush writes the pending payload immediately, if any.
func (s *AutosaveServiceImpl) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	if s.pending == nil {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()
	if s.state == primary.StateConflict {
		s.mu.Unlock()
		return ErrConflictUnresolved
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil
	}
	return s.writeLoopLocked(ctx)
}

// Retry re-attempts the last failed write.
func (s *AutosaveServiceImpl) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	if s.state == primary.StateConflict {
		s.mu.Unlock()
		return ErrConflictUnresolved
	}
	if s.lastFailed == nil {
		s.mu.Unlock()
		return ErrNothingToRetry
	}
	if s.pending == nil {
		s.pending = s.lastFailed
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil
	}
	return s.writeLoopLocked(ctx)
}

// ResolveKeepMine resolves a conflict by force-overwriting: the local
// payload is re-issued against the version the store reported as current.
func (s *AutosaveServiceImpl) ResolveKeepMine(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	if s.state != primary.StateConflict || s.conflict == nil {
		s.mu.Unlock()
		return errors.New("no conflict to resolve")
	}
	// Adopt the store's identity so the re-issued write carries the
	// current version as its expected version.
	s.draftID = s.conflict.ID
	s.version = s.conflict.Version
	s.conflict = nil
	s.state = primary.StateIdle
	if s.pending == nil {
		s.pending = s.lastFailed
	}
	s.lastFailed = nil
	s.lastErr = nil
	if s.pending == nil {
		s.mu.Unlock()
		return nil
	}
	return s.writeLoopLocked(ctx)
}

// ResolveTakeTheirs resolves a conflict by dropping local changes and
// adopting the store's record. The caller reloads its local state from
// the returned draft.
func (s *AutosaveServiceImpl) ResolveTakeTheirs() (*primary.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	if s.state != primary.StateConflict || s.conflict == nil {
		return nil, errors.New("no conflict to resolve")
	}
	theirs := s.conflict
	s.draftID = theirs.ID
	s.version = theirs.Version
	s.saveCount = theirs.AutoSaveCount
	s.conflict = nil
	s.pending = nil
	s.lastFailed = nil
	s.lastErr = nil
	s.state = primary.StateIdle
	return theirs, nil
}

// Conflict returns the store's current draft while in conflict state.
func (s *AutosaveServiceImpl) Conflict() *primary.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflict
}

// Status returns a snapshot of the current save status.
func (s *AutosaveServiceImpl) Status() primary.AutosaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *AutosaveServiceImpl) statusLocked() primary.AutosaveStatus {
	status := primary.AutosaveStatus{
		State:     s.state,
		DraftID:   s.draftID,
		Version:   s.version,
		SaveCount: s.saveCount,
	}
	if !s.lastSavedAt.IsZero() {
		status.LastSavedAt = s.lastSavedAt.Format(time.RFC3339)
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// Close stops the debounce timer, flushes unsaved state with one final
// forced write, and marks the scheduler closed. A write still in flight
// with nothing queued behind it completes on its own and its result is
// discarded; but when a payload is queued behind the flight, Close waits
// for the flight to land so the final write carries the latest edits.
func (s *AutosaveServiceImpl) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()

	// The drain loop owned by the in-flight caller picks the queued
	// payload up itself once its write lands; waiting here just keeps
	// teardown from cutting that off.
	for s.inFlight && s.pending != nil && s.state != primary.StateConflict {
		s.flightDone.Wait()
	}

	var err error
	if s.pending != nil && s.state != primary.StateConflict && !s.inFlight {
		err = s.writeLoopLocked(ctx)
		s.mu.Lock()
	}
	s.closed = true
	s.mu.Unlock()
	return err
}

// timerFired runs when the debounce window elapses.
func (s *AutosaveServiceImpl) timerFired() {
	s.mu.Lock()
	s.timer = nil
	if s.closed || s.pending == nil || s.inFlight || s.state == primary.StateConflict {
		s.mu.Unlock()
		return
	}
	// Errors surface through status; the timer goroutine has no caller
	// to return them to.
	_ = s.writeLoopLocked(context.Background())
}

func (s *AutosaveServiceImpl) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// writeLoopLocked drains the pending slot through the store, one write at
// a time. The caller must hold s.mu; the mutex is released on return.
// Exactly one goroutine runs this loop at a time: entry requires
// !s.inFlight under the lock, and the flag stays set whenever the lock is
// released mid-loop.
func (s *AutosaveServiceImpl) writeLoopLocked(ctx context.Context) error {
	var lastErr error
	for s.pending != nil && !s.closed && s.state != primary.StateConflict {
		payload := *s.pending
		s.pending = nil
		s.inFlight = true
		s.state = primary.StateSaving
		req := secondary.SaveDraftRequest{
			DraftID:         s.draftID,
			Scope:           s.scope,
			CurrentStep:     payload.CurrentStep,
			StepData:        payload.StepData,
			ExpectedVersion: s.version,
		}
		s.notifyLocked()

		s.mu.Unlock()
		wctx, cancel := context.WithTimeout(ctx, s.timeout)
		record, err := s.store.Save(wctx, req)
		cancel()
		s.mu.Lock()

		s.inFlight = false
		s.flightDone.Broadcast()
		if s.closed {
			// Late resolution after teardown: discard the result.
			s.mu.Unlock()
			return nil
		}

		if err != nil {
			lastErr = err
			s.lastErr = err
			s.lastFailed = &payload
			var conflictErr *secondary.ConflictError
			if errors.As(err, &conflictErr) {
				s.state = primary.StateConflict
				s.conflict = recordToDraft(conflictErr.Current)
			} else {
				s.state = primary.StateError
			}
			s.notifyLocked()
			break
		}

		s.draftID = record.ID
		s.version = record.Version
		s.saveCount = record.AutoSaveCount
		s.lastSavedAt = s.now()
		s.lastErr = nil
		s.lastFailed = nil
		s.state = primary.StateSaved
		s.notifyLocked()
	}
	s.mu.Unlock()
	if lastErr != nil {
		return fmt.Errorf("autosave write failed: %w", lastErr)
	}
	return nil
}

// notifyLocked invokes the status callback with a snapshot. The callback
// itself runs on a fresh goroutine so it can call back into the scheduler
// without deadlocking.
func (s *AutosaveServiceImpl) notifyLocked() {
	if s.onStatus == nil {
		return
	}
	snapshot := s.statusLocked()
	go s.onStatus(snapshot)
}

// recordToDraft converts a store record to the presentation view.
func recordToDraft(r *secondary.DraftRecord) *primary.Draft {
	if r == nil {
		return nil
	}
	return &primary.Draft{
		ID:            r.ID,
		CurrentStep:   r.CurrentStep,
		StepData:      r.StepData,
		Version:       r.Version,
		AutoSaveCount: r.AutoSaveCount,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
