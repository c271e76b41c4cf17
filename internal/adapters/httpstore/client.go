// Package httpstore implements the DraftStore port against a remote
// draft service over HTTP. It is used when the wizard runs against a
// shared backend instead of the local SQLite database.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/surveyforge/internal/ports/secondary"
)

// Client talks to the draft service's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the draft service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTP creates a client with a caller-supplied http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

// draftJSON is the wire shape of a draft. Step data keys arrive as JSON
// object keys, which are always strings.
type draftJSON struct {
	ID            string                     `json:"id"`
	UserID        string                     `json:"user_id"`
	CompanyID     string                     `json:"company_id"`
	CurrentStep   int                        `json:"current_step"`
	StepData      map[string]json.RawMessage `json:"step_data"`
	Version       int                        `json:"version"`
	AutoSaveCount int                        `json:"auto_save_count"`
	Status        string                     `json:"status"`
	CreatedAt     string                     `json:"created_at"`
	UpdatedAt     string                     `json:"updated_at"`
}

type saveJSON struct {
	DraftID         string                     `json:"draft_id,omitempty"`
	UserID          string                     `json:"user_id"`
	CompanyID       string                     `json:"company_id"`
	CurrentStep     int                        `json:"current_step"`
	StepData        map[string]json.RawMessage `json:"step_data"`
	ExpectedVersion int                        `json:"expected_version"`
}

type conflictJSON struct {
	Error   string     `json:"error"`
	Current *draftJSON `json:"current"`
}

// FetchByOwner retrieves the active draft for an owner scope.
func (c *Client) FetchByOwner(ctx context.Context, scope secondary.OwnerScope) (*secondary.DraftRecord, error) {
	q := url.Values{}
	q.Set("user_id", scope.UserID)
	q.Set("company_id", scope.CompanyID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/drafts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("draft service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body draftJSON
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to decode draft: %w", err)
		}
		return toRecord(&body)
	case http.StatusNotFound:
		return nil, secondary.ErrNotFound
	default:
		return nil, unexpectedStatus(resp)
	}
}

// Save creates or updates a draft with optimistic concurrency. A 409
// response decodes into a ConflictError carrying the server's current
// record.
func (c *Client) Save(ctx context.Context, req secondary.SaveDraftRequest) (*secondary.DraftRecord, error) {
	payload := saveJSON{
		DraftID:         req.DraftID,
		UserID:          req.Scope.UserID,
		CompanyID:       req.Scope.CompanyID,
		CurrentStep:     req.CurrentStep,
		StepData:        toWireStepData(req.StepData),
		ExpectedVersion: req.ExpectedVersion,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode save request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/drafts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("draft service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var saved draftJSON
		if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
			return nil, fmt.Errorf("failed to decode draft: %w", err)
		}
		return toRecord(&saved)
	case http.StatusConflict:
		var conflict conflictJSON
		if err := json.NewDecoder(resp.Body).Decode(&conflict); err != nil {
			return nil, &secondary.ConflictError{}
		}
		conflictErr := &secondary.ConflictError{}
		if conflict.Current != nil {
			current, err := toRecord(conflict.Current)
			if err != nil {
				return nil, err
			}
			conflictErr.Current = current
		}
		return nil, conflictErr
	case http.StatusNotFound:
		return nil, secondary.ErrNotFound
	default:
		return nil, unexpectedStatus(resp)
	}
}

// Discard marks a draft as discarded.
func (c *Client) Discard(ctx context.Context, id string) error {
	return c.simpleCall(ctx, http.MethodDelete, "/api/drafts/"+url.PathEscape(id))
}

// MarkRecovered records that a draft was loaded back into a session.
func (c *Client) MarkRecovered(ctx context.Context, id string) error {
	return c.simpleCall(ctx, http.MethodPost, "/api/drafts/"+url.PathEscape(id)+"/recover")
}

func (c *Client) simpleCall(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("draft service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return secondary.ErrNotFound
	default:
		return unexpectedStatus(resp)
	}
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("draft service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}

func toRecord(d *draftJSON) (*secondary.DraftRecord, error) {
	steps := make(map[int]json.RawMessage, len(d.StepData))
	for key, raw := range d.StepData {
		step, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid step key %q in draft %s: %w", key, d.ID, err)
		}
		steps[step] = raw
	}
	return &secondary.DraftRecord{
		ID:            d.ID,
		Scope:         secondary.OwnerScope{UserID: d.UserID, CompanyID: d.CompanyID},
		CurrentStep:   d.CurrentStep,
		StepData:      steps,
		Version:       d.Version,
		AutoSaveCount: d.AutoSaveCount,
		Status:        d.Status,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func toWireStepData(steps map[int]json.RawMessage) map[string]json.RawMessage {
	wire := make(map[string]json.RawMessage, len(steps))
	for step, raw := range steps {
		wire[strconv.Itoa(step)] = raw
	}
	return wire
}
