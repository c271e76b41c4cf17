package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/surveyforge/internal/ports/secondary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockDraftStore implements secondary.DraftStore for testing. It enforces
// the store-side optimistic-concurrency contract so scheduler tests
// exercise real version semantics.
type mockDraftStore struct {
	mu     sync.Mutex
	drafts map[string]*secondary.DraftRecord
	nextID int

	saveCalls    []secondary.SaveDraftRequest
	fetchCalls   int
	discardCalls []string
	recoverCalls []string

	fetchRecord *secondary.DraftRecord
	fetchErr    error
	saveErr     error
	discardErr  error

	// saveGate, when set, blocks Save until a value is received. Used to
	// hold a write in flight while the test interleaves other calls.
	saveGate chan struct{}

	inFlight    int
	maxInFlight int
}

func newMockDraftStore() *mockDraftStore {
	return &mockDraftStore{
		drafts: make(map[string]*secondary.DraftRecord),
	}
}

func (m *mockDraftStore) FetchByOwner(ctx context.Context, scope secondary.OwnerScope) (*secondary.DraftRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.fetchRecord != nil {
		copied := *m.fetchRecord
		return &copied, nil
	}
	return nil, secondary.ErrNotFound
}

func (m *mockDraftStore) Save(ctx context.Context, req secondary.SaveDraftRequest) (*secondary.DraftRecord, error) {
	m.mu.Lock()
	m.saveCalls = append(m.saveCalls, req)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	gate := m.saveGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			m.mu.Lock()
			m.inFlight--
			m.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--

	if m.saveErr != nil {
		return nil, m.saveErr
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if req.DraftID == "" {
		m.nextID++
		record := &secondary.DraftRecord{
			ID:            fmt.Sprintf("draft-%03d", m.nextID),
			Scope:         req.Scope,
			CurrentStep:   req.CurrentStep,
			StepData:      req.StepData,
			Version:       1,
			AutoSaveCount: 1,
			Status:        "active",
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		m.drafts[record.ID] = record
		copied := *record
		return &copied, nil
	}

	existing, ok := m.drafts[req.DraftID]
	if !ok {
		return nil, secondary.ErrNotFound
	}
	if existing.Version != req.ExpectedVersion {
		current := *existing
		return nil, &secondary.ConflictError{Current: &current}
	}
	existing.CurrentStep = req.CurrentStep
	existing.StepData = req.StepData
	existing.Version++
	existing.AutoSaveCount++
	existing.UpdatedAt = now
	copied := *existing
	return &copied, nil
}

func (m *mockDraftStore) Discard(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardCalls = append(m.discardCalls, id)
	if m.discardErr != nil {
		return m.discardErr
	}
	if record, ok := m.drafts[id]; ok {
		record.Status = "discarded"
	}
	return nil
}

func (m *mockDraftStore) MarkRecovered(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoverCalls = append(m.recoverCalls, id)
	if record, ok := m.drafts[id]; ok {
		record.Status = "recovered"
	}
	return nil
}

// seedDraft installs a draft record into the mock store and returns it.
func (m *mockDraftStore) seedDraft(id string, version int) *secondary.DraftRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339)
	record := &secondary.DraftRecord{
		ID:            id,
		CurrentStep:   1,
		Version:       version,
		AutoSaveCount: version,
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.drafts[id] = record
	return record
}

func (m *mockDraftStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saveCalls)
}

func (m *mockDraftStore) lastSaveCall() secondary.SaveDraftRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls[len(m.saveCalls)-1]
}

func (m *mockDraftStore) saveCallAt(i int) secondary.SaveDraftRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls[i]
}
