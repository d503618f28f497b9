package domain

import (
	"context"
	"encoding/json"
	"time"
)

// StoredDocument is a persisted document snapshot as kept by the backend.
type StoredDocument struct {
	ID        string          `json:"id"`
	State     json.RawMessage `json:"state"`
	Revision  int64           `json:"revision"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Revision is one entry of a document's save history.
type Revision struct {
	DocumentID string    `json:"documentId"`
	Revision   int64     `json:"revision"`
	Size       int       `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DocumentStore persists serialized documents behind the save endpoint.
type DocumentStore interface {
	// SaveDocument stores state as the newest revision and returns the record.
	SaveDocument(ctx context.Context, id string, state json.RawMessage) (*StoredDocument, error)
	// LoadDocument returns the newest revision, or nil when nothing is stored.
	LoadDocument(ctx context.Context, id string) (*StoredDocument, error)
	// LoadRevision returns a specific earlier revision, or nil.
	LoadRevision(ctx context.Context, id string, revision int64) (*StoredDocument, error)
	ListRevisions(ctx context.Context, id string) ([]Revision, error)
	Close() error
}
