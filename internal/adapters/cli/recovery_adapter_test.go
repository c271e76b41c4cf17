package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/surveyforge/internal/ports/primary"
)

// mockRecovery implements primary.Recovery for testing
type mockRecovery struct {
	checkState   primary.RecoveryState
	checkErr     error
	recoverState primary.RecoveryState
	recoverErr   error
	discardErr   error

	discardCalled bool
	hideCalled    bool
}

func (m *mockRecovery) CheckForDrafts(ctx context.Context) (primary.RecoveryState, error) {
	return m.checkState, m.checkErr
}

func (m *mockRecovery) RecoverDraft(ctx context.Context) (primary.RecoveryState, error) {
	return m.recoverState, m.recoverErr
}

func (m *mockRecovery) DiscardDraft(ctx context.Context) error {
	m.discardCalled = true
	return m.discardErr
}

func (m *mockRecovery) HideBanner() {
	m.hideCalled = true
}

func (m *mockRecovery) State() primary.RecoveryState {
	return m.checkState
}

func bannerState(age string) primary.RecoveryState {
	return primary.RecoveryState{
		HasDraft:   true,
		ShowBanner: true,
		DraftAge:   age,
		Draft: &primary.Draft{
			ID:            "draft-001",
			CurrentStep:   2,
			AutoSaveCount: 7,
		},
		TimeUntilExpiry: 100 * time.Hour,
	}
}

func TestShowBannerWithDraft(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewRecoveryAdapter(&mockRecovery{checkState: bannerState("3 hours ago")}, &buf)

	state, err := adapter.ShowBanner(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.ShowBanner {
		t.Fatal("expected banner state")
	}

	output := buf.String()
	if !strings.Contains(output, "unsaved survey draft from 3 hours ago") {
		t.Errorf("expected banner text in output:\n%s", output)
	}
	if !strings.Contains(output, "draft-001, step 2, 7 autosaves") {
		t.Errorf("expected draft details in output:\n%s", output)
	}
	if strings.Contains(output, "Expires in") {
		t.Errorf("expiry warning should not show for a fresh draft:\n%s", output)
	}
}

func TestShowBannerExpiringSoon(t *testing.T) {
	state := bannerState("6 days ago")
	state.IsExpiringSoon = true
	state.TimeUntilExpiry = 18 * time.Hour

	var buf bytes.Buffer
	adapter := NewRecoveryAdapter(&mockRecovery{checkState: state}, &buf)

	if _, err := adapter.ShowBanner(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Expires in 18h.") {
		t.Errorf("expected expiry warning:\n%s", buf.String())
	}
}

func TestShowBannerWithoutDraft(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewRecoveryAdapter(&mockRecovery{}, &buf)

	state, err := adapter.ShowBanner(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if state.ShowBanner {
		t.Error("expected no banner")
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output without a draft, got:\n%s", buf.String())
	}
}

func TestResume(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewRecoveryAdapter(&mockRecovery{
		recoverState: primary.RecoveryState{
			HasDraft: true,
			Draft:    &primary.Draft{ID: "draft-001", CurrentStep: 3},
		},
	}, &buf)

	if _, err := adapter.Resume(context.Background()); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Draft draft-001 restored at step 3.") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestResumeError(t *testing.T) {
	adapter := NewRecoveryAdapter(&mockRecovery{
		recoverErr: errors.New("no draft available"),
	}, &bytes.Buffer{})

	if _, err := adapter.Resume(context.Background()); err == nil {
		t.Fatal("expected resume error")
	}
}

func TestDiscard(t *testing.T) {
	mock := &mockRecovery{}
	var buf bytes.Buffer
	adapter := NewRecoveryAdapter(mock, &buf)

	if err := adapter.Discard(context.Background()); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	if !mock.discardCalled {
		t.Error("expected DiscardDraft to be called")
	}
	if !strings.Contains(buf.String(), "Draft discarded.") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestStartFresh(t *testing.T) {
	mock := &mockRecovery{}
	var buf bytes.Buffer
	adapter := NewRecoveryAdapter(mock, &buf)

	adapter.StartFresh()

	if !mock.hideCalled {
		t.Error("expected HideBanner to be called")
	}
	if mock.discardCalled {
		t.Error("starting fresh must not discard the draft")
	}
}
