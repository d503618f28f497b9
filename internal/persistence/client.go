package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediakit/internal/domain"
)

// Endpoint actions.
const (
	ActionSave          = "save_document"
	ActionLoad          = "load_document"
	ActionListRevisions = "list_revisions"
)

// Envelope is the endpoint's response shape. On failure Data carries a
// human-readable message, either as a bare string or as {"message": ...}.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// SaveResult is the data of a successful save.
type SaveResult struct {
	Message              string    `json:"message"`
	Timestamp            time.Time `json:"timestamp"`
	Revision             int64     `json:"revision"`
	ComponentsCount      int       `json:"components_count"`
	SectionsCount        int       `json:"sections_count"`
	ComponentsInSections int       `json:"components_in_sections"`
	DataSize             int       `json:"data_size"`
}

// LoadResult is the data of a successful load. State is null when nothing
// has been saved yet.
type LoadResult struct {
	State     *domain.Document `json:"state"`
	Revision  int64            `json:"revision"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Backend is the persistence endpoint as seen by the Service.
type Backend interface {
	Save(ctx context.Context, doc *domain.Document) (*SaveResult, error)
	Load(ctx context.Context) (*LoadResult, error)
}

// Client speaks the endpoint contract: a form POST carrying action,
// document_id, security_token and, for saves, the serialized document.
type Client struct {
	endpoint   string
	documentID string
	token      string
	http       *http.Client
}

// NewClient creates a client for one document. A zero timeout defaults to 30s.
func NewClient(endpoint, documentID, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		documentID: documentID,
		token:      token,
		http:       &http.Client{Timeout: timeout},
	}
}

// Save sends the entire document.
func (c *Client) Save(ctx context.Context, doc *domain.Document) (*SaveResult, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out SaveResult
	if err := c.call(ctx, ActionSave, url.Values{"state": {string(payload)}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Load fetches the newest stored document.
func (c *Client) Load(ctx context.Context) (*LoadResult, error) {
	var out LoadResult
	if err := c.call(ctx, ActionLoad, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRevisions returns the stored save history, newest first.
func (c *Client) ListRevisions(ctx context.Context) ([]domain.Revision, error) {
	var out []domain.Revision
	if err := c.call(ctx, ActionListRevisions, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, action string, extra url.Values, out any) error {
	form := url.Values{}
	form.Set("action", action)
	form.Set("document_id", c.documentID)
	form.Set("security_token", c.token)
	for k, v := range extra {
		form[k] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.WrapError(domain.ErrCodePersistence, err, "create %s request", action)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrCodePersistence, err, "%s request", action)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return domain.WrapError(domain.ErrCodePersistence, err, "read %s response", action)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return domain.NewError(domain.ErrCodePersistence, "%s failed: HTTP %d", action, resp.StatusCode)
		}
		return domain.WrapError(domain.ErrCodePersistence, err, "decode %s response", action)
	}
	if !env.Success {
		return domain.NewError(domain.ErrCodePersistence, "%s", failureMessage(env.Data, resp.StatusCode))
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.WrapError(domain.ErrCodePersistence, err, "decode %s data", action)
	}
	return nil
}

func failureMessage(data json.RawMessage, status int) string {
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil && msg != "" {
		return msg
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return fmt.Sprintf("save endpoint reported failure (HTTP %d)", status)
}
