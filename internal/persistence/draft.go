package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mediakit/internal/domain"
)

// Drafts keeps a local copy of the document as it was last handed to the
// backend, so edits survive an endpoint that is down.
type Drafts interface {
	SaveDraft(ctx context.Context, doc *domain.Document) error
	// LoadDraft returns the newest draft, or nil when none exists.
	LoadDraft(ctx context.Context) (*Draft, error)
}

// Draft is a locally stored document.
type Draft struct {
	State   *domain.Document
	SavedAt time.Time
}

// DraftStore keeps drafts in a local DocumentStore under "draft:<id>".
type DraftStore struct {
	store domain.DocumentStore
	key   string
}

var _ Drafts = (*DraftStore)(nil)

func NewDraftStore(store domain.DocumentStore, documentID string) *DraftStore {
	return &DraftStore{store: store, key: "draft:" + documentID}
}

func (d *DraftStore) SaveDraft(ctx context.Context, doc *domain.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if _, err := d.store.SaveDocument(ctx, d.key, b); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (d *DraftStore) LoadDraft(ctx context.Context) (*Draft, error) {
	stored, err := d.store.LoadDocument(ctx, d.key)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if stored == nil {
		return nil, nil
	}
	var doc domain.Document
	if err := json.Unmarshal(stored.State, &doc); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &Draft{State: &doc, SavedAt: stored.UpdatedAt}, nil
}

// Close releases the underlying store.
func (d *DraftStore) Close() error {
	return d.store.Close()
}
