package app

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/surveyforge/internal/ports/primary"
	"github.com/example/surveyforge/internal/ports/secondary"
)

func newTestRecovery(store *mockDraftStore, cfg RecoveryConfig) *RecoveryServiceImpl {
	cfg.Store = store
	cfg.Scope = secondary.OwnerScope{UserID: "user-1", CompanyID: "co-1"}
	if cfg.Logger == nil {
		cfg.Logger = log.New(bytes.NewBuffer(nil), "", 0)
	}
	return NewRecoveryService(cfg)
}

// activeRecord builds a store record created the given duration ago.
func activeRecord(id string, age time.Duration) *secondary.DraftRecord {
	created := time.Now().UTC().Add(-age)
	return &secondary.DraftRecord{
		ID:            id,
		CurrentStep:   2,
		Version:       3,
		AutoSaveCount: 3,
		Status:        "active",
		CreatedAt:     created.Format(time.RFC3339),
		UpdatedAt:     created.Format(time.RFC3339),
	}
}

func TestCheckForDraftsFindsFreshDraft(t *testing.T) {
	store := newMockDraftStore()
	store.fetchRecord = activeRecord("draft-001", 3*time.Hour)
	svc := newTestRecovery(store, RecoveryConfig{MaxAge: 168 * time.Hour})

	state, err := svc.CheckForDrafts(context.Background())
	if err != nil {
		t.Fatalf("CheckForDrafts failed: %v", err)
	}
	if !state.HasDraft {
		t.Fatal("expected a qualifying draft")
	}
	if !state.ShowBanner {
		t.Error("expected the recovery banner to show")
	}
	if state.DraftAge != "3 hours ago" {
		t.Errorf("unexpected draft age: %q", state.DraftAge)
	}
	if state.TimeUntilExpiry <= 0 {
		t.Error("expected positive time until expiry")
	}
	if state.IsExpiringSoon {
		t.Error("a 3 hour old draft with a week-long window is not expiring soon")
	}
	if state.Draft == nil || state.Draft.CurrentStep != 2 {
		t.Errorf("expected draft view with step pointer, got %+v", state.Draft)
	}
}

func TestCheckForDraftsFiltersExpired(t *testing.T) {
	store := newMockDraftStore()
	store.fetchRecord = activeRecord("draft-001", 30*time.Hour)
	svc := newTestRecovery(store, RecoveryConfig{MaxAge: 24 * time.Hour})

	state, err := svc.CheckForDrafts(context.Background())
	if err != nil {
		t.Fatalf("CheckForDrafts failed: %v", err)
	}
	if state.HasDraft {
		t.Error("a 30 hour old draft with maxAge 24h must never surface")
	}
}

func TestCheckForDraftsExpiringSoon(t *testing.T) {
	store := newMockDraftStore()
	store.fetchRecord = activeRecord("draft-001", 150*time.Hour)
	svc := newTestRecovery(store, RecoveryConfig{
		MaxAge:        168 * time.Hour,
		ExpiryWarning: 24 * time.Hour,
	})

	state, _ := svc.CheckForDrafts(context.Background())
	if !state.HasDraft {
		t.Fatal("expected draft inside the window")
	}
	if !state.IsExpiringSoon {
		t.Error("18 hours remaining should count as expiring soon")
	}
}

func TestCheckForDraftsFailsOpen(t *testing.T) {
	store := newMockDraftStore()
	store.fetchErr = errors.New("store unreachable")
	var buf bytes.Buffer
	svc := newTestRecovery(store, RecoveryConfig{Logger: log.New(&buf, "", 0)})

	state, err := svc.CheckForDrafts(context.Background())
	if err != nil {
		t.Fatalf("fetch failure must not block the user: %v", err)
	}
	if state.HasDraft {
		t.Error("fetch failure should resolve to no draft")
	}
	if buf.Len() == 0 {
		t.Error("the underlying failure must still be logged")
	}
}

func TestCheckForDraftsNotFoundIsQuiet(t *testing.T) {
	store := newMockDraftStore()
	var buf bytes.Buffer
	svc := newTestRecovery(store, RecoveryConfig{Logger: log.New(&buf, "", 0)})

	state, err := svc.CheckForDrafts(context.Background())
	if err != nil || state.HasDraft {
		t.Fatalf("expected clean no-draft result, got state=%+v err=%v", state, err)
	}
	if buf.Len() != 0 {
		t.Errorf("not-found is not an error worth logging: %s", buf.String())
	}
}

func TestCheckForDraftsSkipsNonActive(t *testing.T) {
	store := newMockDraftStore()
	record := activeRecord("draft-001", time.Hour)
	record.Status = "discarded"
	store.fetchRecord = record
	svc := newTestRecovery(store, RecoveryConfig{})

	state, _ := svc.CheckForDrafts(context.Background())
	if state.HasDraft {
		t.Error("discarded drafts must not reappear in recovery")
	}
}

func TestRecoverDraftIsIdempotent(t *testing.T) {
	store := newMockDraftStore()
	store.fetchRecord = activeRecord("draft-001", time.Hour)

	var recovered int32
	var lastDraft *primary.Draft
	var mu sync.Mutex
	svc := newTestRecovery(store, RecoveryConfig{
		OnRecover: func(d *primary.Draft) {
			atomic.AddInt32(&recovered, 1)
			mu.Lock()
			lastDraft = d
			mu.Unlock()
		},
	})

	if _, err := svc.CheckForDrafts(context.Background()); err != nil {
		t.Fatal(err)
	}

	state, err := svc.RecoverDraft(context.Background())
	if err != nil {
		t.Fatalf("RecoverDraft failed: %v", err)
	}
	if state.ShowBanner {
		t.Error("banner should be dismissed after recovery")
	}

	// Second call must not double-apply state or issue a second load.
	if _, err := svc.RecoverDraft(context.Background()); err != nil {
		t.Fatalf("second RecoverDraft failed: %v", err)
	}

	if got := atomic.LoadInt32(&recovered); got != 1 {
		t.Errorf("OnRecover must fire exactly once, fired %d times", got)
	}
	if len(store.recoverCalls) != 1 {
		t.Errorf("MarkRecovered must be issued exactly once, got %d", len(store.recoverCalls))
	}
	mu.Lock()
	defer mu.Unlock()
	if lastDraft == nil || lastDraft.ID != "draft-001" || lastDraft.CurrentStep != 2 {
		t.Errorf("recovered draft should carry step pointer and data, got %+v", lastDraft)
	}
}

func TestRecoverWithoutDraft(t *testing.T) {
	store := newMockDraftStore()
	svc := newTestRecovery(store, RecoveryConfig{})

	if _, err := svc.RecoverDraft(context.Background()); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got %v", err)
	}
}

func TestDiscardClearsStateAndGuardsRaces(t *testing.T) {
	store := newMockDraftStore()
	store.fetchRecord = activeRecord("draft-001", time.Hour)

	var discarded int32
	svc := newTestRecovery(store, RecoveryConfig{
		OnDiscard: func() { atomic.AddInt32(&discarded, 1) },
	})

	if _, err := svc.CheckForDrafts(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := svc.DiscardDraft(context.Background()); err != nil {
		t.Fatalf("DiscardDraft failed: %v", err)
	}

	if svc.State().HasDraft {
		t.Error("local recovery state should be cleared")
	}
	if len(store.discardCalls) != 1 || store.discardCalls[0] != "draft-001" {
		t.Errorf("expected one store discard for draft-001, got %v", store.discardCalls)
	}
	if atomic.LoadInt32(&discarded) != 1 {
		t.Error("OnDiscard should fire once")
	}

	// A stale check response arriving after the discard must not
	// resurface the same draft this session.
	state, _ := svc.CheckForDrafts(context.Background())
	if state.HasDraft {
		t.Error("discarded draft resurfaced from a stale check response")
	}
}

func TestHideBannerKeepsDraft(t *testing.T) {
	store := newMockDraftStore()
	store.fetchRecord = activeRecord("draft-001", time.Hour)
	svc := newTestRecovery(store, RecoveryConfig{})

	if _, err := svc.CheckForDrafts(context.Background()); err != nil {
		t.Fatal(err)
	}
	svc.HideBanner()

	state := svc.State()
	if !state.HasDraft {
		t.Error("hiding the banner must not discard the draft")
	}
	if state.ShowBanner {
		t.Error("banner should be hidden for the session")
	}
	if len(store.discardCalls) != 0 {
		t.Error("HideBanner must not touch the store")
	}
}

func TestExpiryTicker(t *testing.T) {
	store := newMockDraftStore()
	store.fetchRecord = activeRecord("draft-001", 150*time.Hour)

	var ticks int32
	var soon atomic.Bool
	svc := newTestRecovery(store, RecoveryConfig{
		MaxAge:        168 * time.Hour,
		ExpiryWarning: 24 * time.Hour,
		OnExpiryTick: func(remaining time.Duration, expiringSoon bool) {
			atomic.AddInt32(&ticks, 1)
			soon.Store(expiringSoon)
		},
	})

	if _, err := svc.CheckForDrafts(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc.StartExpiryTicker(ctx, 5*time.Millisecond)

	waitFor(t, func() bool { return atomic.LoadInt32(&ticks) >= 3 })
	cancel()

	if !soon.Load() {
		t.Error("ticker should report the draft as expiring soon")
	}

	// After cancellation the ticker stops feeding the hook.
	time.Sleep(15 * time.Millisecond)
	settled := atomic.LoadInt32(&ticks)
	time.Sleep(15 * time.Millisecond)
	if atomic.LoadInt32(&ticks) != settled {
		t.Error("ticker kept firing after context cancellation")
	}
}
