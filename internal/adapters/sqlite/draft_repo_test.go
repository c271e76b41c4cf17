package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/surveyforge/internal/adapters/sqlite"
	"github.com/example/surveyforge/internal/ports/secondary"
)

var testScope = secondary.OwnerScope{UserID: "user-1", CompanyID: "co-1"}

func stepData(step int, content string) map[int]json.RawMessage {
	return map[int]json.RawMessage{step: json.RawMessage(`"` + content + `"`)}
}

func TestCreateDraft(t *testing.T) {
	repo := sqlite.NewDraftRepository(setupTestDB(t))
	ctx := context.Background()

	record, err := repo.Save(ctx, secondary.SaveDraftRequest{
		Scope:       testScope,
		CurrentStep: 1,
		StepData:    stepData(1, "survey title"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if record.ID == "" {
		t.Error("expected the store to assign an ID")
	}
	if record.Version != 1 {
		t.Errorf("expected version 1 on creation, got %d", record.Version)
	}
	if record.AutoSaveCount != 1 {
		t.Errorf("expected auto save count 1 on creation, got %d", record.AutoSaveCount)
	}
	if record.Status != "active" {
		t.Errorf("expected active status, got %s", record.Status)
	}
	if string(record.StepData[1]) != `"survey title"` {
		t.Errorf("step data did not round-trip: %s", record.StepData[1])
	}
	if _, err := time.Parse(time.RFC3339, record.CreatedAt); err != nil {
		t.Errorf("created_at is not RFC3339: %q", record.CreatedAt)
	}
}

func TestUpdateDraftIncrementsVersion(t *testing.T) {
	repo := sqlite.NewDraftRepository(setupTestDB(t))
	ctx := context.Background()

	record, err := repo.Save(ctx, secondary.SaveDraftRequest{Scope: testScope, CurrentStep: 1})
	if err != nil {
		t.Fatal(err)
	}

	for i := 2; i <= 4; i++ {
		record, err = repo.Save(ctx, secondary.SaveDraftRequest{
			DraftID:         record.ID,
			Scope:           testScope,
			CurrentStep:     i,
			StepData:        stepData(i, "data"),
			ExpectedVersion: record.Version,
		})
		if err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
		if record.Version != i {
			t.Errorf("expected version %d, got %d", i, record.Version)
		}
		if record.AutoSaveCount != i {
			t.Errorf("expected auto save count %d, got %d", i, record.AutoSaveCount)
		}
	}
	if record.CurrentStep != 4 {
		t.Errorf("expected step pointer 4, got %d", record.CurrentStep)
	}
}

func TestStaleVersionIsConflict(t *testing.T) {
	repo := sqlite.NewDraftRepository(setupTestDB(t))
	ctx := context.Background()

	record, err := repo.Save(ctx, secondary.SaveDraftRequest{Scope: testScope, CurrentStep: 1})
	if err != nil {
		t.Fatal(err)
	}

	// Tab A moves the draft to version 2.
	if _, err := repo.Save(ctx, secondary.SaveDraftRequest{
		DraftID:         record.ID,
		Scope:           testScope,
		CurrentStep:     2,
		ExpectedVersion: 1,
	}); err != nil {
		t.Fatal(err)
	}

	// Tab B still expects version 1.
	_, err = repo.Save(ctx, secondary.SaveDraftRequest{
		DraftID:         record.ID,
		Scope:           testScope,
		CurrentStep:     2,
		ExpectedVersion: 1,
	})
	if !errors.Is(err, secondary.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	var conflictErr *secondary.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatal("conflict should carry the store's current record")
	}
	if conflictErr.Current.Version != 2 {
		t.Errorf("expected current version 2 in conflict, got %d", conflictErr.Current.Version)
	}
}

func TestFetchByOwnerFiltersStatus(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewDraftRepository(database)
	ctx := context.Background()

	seedDraft(t, database, "draft-discarded", "user-1", "discarded", "-1 hours")
	seedDraft(t, database, "draft-recovered", "user-1", "recovered", "-1 hours")

	if _, err := repo.FetchByOwner(ctx, testScope); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("discarded/recovered drafts must not be fetchable, got %v", err)
	}

	seedDraft(t, database, "draft-active", "user-1", "active", "-2 hours")
	record, err := repo.FetchByOwner(ctx, testScope)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if record.ID != "draft-active" {
		t.Errorf("expected the active draft, got %s", record.ID)
	}
}

func TestFetchByOwnerReturnsMostRecent(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewDraftRepository(database)

	seedDraft(t, database, "draft-old", "user-1", "active", "-10 hours")
	seedDraft(t, database, "draft-new", "user-1", "active", "-1 hours")

	record, err := repo.FetchByOwner(context.Background(), testScope)
	if err != nil {
		t.Fatal(err)
	}
	if record.ID != "draft-new" {
		t.Errorf("expected the most recently updated draft, got %s", record.ID)
	}
}

func TestFetchByOwnerScopesToOwner(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewDraftRepository(database)

	seedDraft(t, database, "draft-other", "user-2", "active", "")

	if _, err := repo.FetchByOwner(context.Background(), testScope); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("drafts must never leak across owner scopes, got %v", err)
	}
}

func TestDiscardDraft(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewDraftRepository(database)
	ctx := context.Background()

	id := seedDraft(t, database, "", "", "", "")
	if err := repo.Discard(ctx, id); err != nil {
		t.Fatalf("discard failed: %v", err)
	}

	record, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != "discarded" {
		t.Errorf("expected discarded status, got %s", record.Status)
	}

	// Discarded drafts are soft-deleted: filtered, not gone.
	if _, err := repo.FetchByOwner(ctx, testScope); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("discarded draft must not be fetchable, got %v", err)
	}

	if err := repo.Discard(ctx, "draft-nope"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown draft, got %v", err)
	}
}

func TestDiscardedDraftRejectsWrites(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewDraftRepository(database)
	ctx := context.Background()

	id := seedDraft(t, database, "", "", "", "")
	if err := repo.Discard(ctx, id); err != nil {
		t.Fatal(err)
	}

	_, err := repo.Save(ctx, secondary.SaveDraftRequest{
		DraftID:         id,
		Scope:           testScope,
		CurrentStep:     2,
		ExpectedVersion: 1,
	})
	if err == nil {
		t.Fatal("writes to a discarded draft must fail")
	}
	if errors.Is(err, secondary.ErrVersionConflict) {
		t.Errorf("a discarded draft at the expected version is not a conflict: %v", err)
	}
}

func TestMarkRecovered(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewDraftRepository(database)
	ctx := context.Background()

	id := seedDraft(t, database, "", "", "", "")
	if err := repo.MarkRecovered(ctx, id); err != nil {
		t.Fatalf("mark recovered failed: %v", err)
	}

	record, _ := repo.GetByID(ctx, id)
	if record.Status != "recovered" {
		t.Errorf("expected recovered status, got %s", record.Status)
	}

	// Idempotent for drafts already out of active.
	if err := repo.MarkRecovered(ctx, id); err != nil {
		t.Errorf("second mark should be a no-op, got %v", err)
	}

	if err := repo.MarkRecovered(ctx, "draft-nope"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListDrafts(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewDraftRepository(database)
	ctx := context.Background()

	seedDraft(t, database, "draft-a", "user-1", "active", "-3 hours")
	seedDraft(t, database, "draft-b", "user-2", "active", "-1 hours")
	seedDraft(t, database, "draft-c", "user-3", "discarded", "-2 hours")

	all, err := repo.List(ctx, sqlite.DraftFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 drafts, got %d", len(all))
	}
	if all[0].ID != "draft-b" {
		t.Errorf("expected newest first, got %s", all[0].ID)
	}

	active, err := repo.List(ctx, sqlite.DraftFilters{Status: "active"})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Errorf("expected 2 active drafts, got %d", len(active))
	}

	limited, err := repo.List(ctx, sqlite.DraftFilters{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit applied, got %d", len(limited))
	}
}

func TestPurgeExpired(t *testing.T) {
	database := setupTestDB(t)
	repo := sqlite.NewDraftRepository(database)
	ctx := context.Background()

	seedDraft(t, database, "draft-old", "user-1", "active", "-200 hours")
	seedDraft(t, database, "draft-fresh", "user-2", "active", "-1 hours")

	purged, err := repo.PurgeExpired(ctx, 168*time.Hour)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged draft, got %d", purged)
	}

	if _, err := repo.GetByID(ctx, "draft-old"); !errors.Is(err, secondary.ErrNotFound) {
		t.Error("expired draft should be gone")
	}
	if _, err := repo.GetByID(ctx, "draft-fresh"); err != nil {
		t.Errorf("fresh draft should survive purge: %v", err)
	}
}
