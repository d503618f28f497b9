package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"mediakit/internal/domain"
	"mediakit/internal/logging"
)

// DefaultMaxRevisions bounds the stored save history per document.
const DefaultMaxRevisions = 40

// DocumentStore keeps every save of a document as a numbered revision, with
// a pointer row in documents naming the newest one.
type DocumentStore struct {
	db           *DB
	maxRevisions int
	logger       *log.Logger
	now          func() time.Time
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(db *DB, maxRevisions int, logger *log.Logger) *DocumentStore {
	if maxRevisions <= 0 {
		maxRevisions = DefaultMaxRevisions
	}
	return &DocumentStore{
		db:           db,
		maxRevisions: maxRevisions,
		logger:       logging.OrDiscard(logger).WithPrefix("storage"),
		now:          time.Now,
	}
}

// SaveDocument stores state as the next revision.
func (s *DocumentStore) SaveDocument(ctx context.Context, id string, state json.RawMessage) (*domain.StoredDocument, error) {
	now := s.now()
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	err = tx.QueryRowContext(ctx,
		s.db.rebind(`SELECT COALESCE(MAX(revision), 0) FROM document_revisions WHERE document_id = ?`), id,
	).Scan(&rev)
	if err != nil {
		return nil, fmt.Errorf("read revision: %w", err)
	}
	rev++

	if _, err := tx.ExecContext(ctx,
		s.db.rebind(`INSERT INTO document_revisions (document_id, revision, state_json, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		id, rev, string(state), len(state), now.UnixMilli(),
	); err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.db.rebind(`INSERT INTO documents (id, revision, updated_at) VALUES (?, ?, ?) `+
			s.db.upsertHead("id", "revision", "updated_at")),
		id, rev, now.UnixMilli(),
	); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save: %w", err)
	}

	// The revision is committed; old ones are pruned again on the next save.
	if err := s.prune(ctx, id); err != nil {
		s.logger.Warn("prune revisions failed", "document", id, "revision", rev, "err", err)
	}
	return &domain.StoredDocument{
		ID:        id,
		State:     state,
		Revision:  rev,
		UpdatedAt: time.UnixMilli(now.UnixMilli()),
	}, nil
}

// LoadDocument returns the newest revision, or nil when nothing is stored.
func (s *DocumentStore) LoadDocument(ctx context.Context, id string) (*domain.StoredDocument, error) {
	var rev int64
	err := s.db.Conn().QueryRowContext(ctx,
		s.db.rebind(`SELECT revision FROM documents WHERE id = ?`), id,
	).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return s.LoadRevision(ctx, id, rev)
}

// LoadRevision returns a specific revision, or nil when it was pruned or
// never existed.
func (s *DocumentStore) LoadRevision(ctx context.Context, id string, revision int64) (*domain.StoredDocument, error) {
	var state string
	var created int64
	err := s.db.Conn().QueryRowContext(ctx,
		s.db.rebind(`SELECT state_json, created_at FROM document_revisions WHERE document_id = ? AND revision = ?`),
		id, revision,
	).Scan(&state, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load revision %s@%d: %w", id, revision, err)
	}
	return &domain.StoredDocument{
		ID:        id,
		State:     json.RawMessage(state),
		Revision:  revision,
		UpdatedAt: time.UnixMilli(created),
	}, nil
}

// ListRevisions returns the stored revisions, newest first.
func (s *DocumentStore) ListRevisions(ctx context.Context, id string) ([]domain.Revision, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		s.db.rebind(`SELECT revision, size_bytes, created_at FROM document_revisions
		 WHERE document_id = ? ORDER BY revision DESC`), id,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []domain.Revision
	for rows.Next() {
		r := domain.Revision{DocumentID: id}
		var created int64
		if err := rows.Scan(&r.Revision, &r.Size, &created); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}

// prune removes the oldest revisions beyond maxRevisions.
func (s *DocumentStore) prune(ctx context.Context, id string) error {
	var count int
	if err := s.db.Conn().QueryRowContext(ctx,
		s.db.rebind(`SELECT COUNT(*) FROM document_revisions WHERE document_id = ?`), id,
	).Scan(&count); err != nil {
		return fmt.Errorf("count revisions: %w", err)
	}
	if count <= s.maxRevisions {
		return nil
	}

	// Collect the cutoff first; no rows cursor stays open during the delete.
	var cutoff int64
	if err := s.db.Conn().QueryRowContext(ctx,
		s.db.rebind(`SELECT MAX(revision) FROM document_revisions WHERE document_id = ?`), id,
	).Scan(&cutoff); err != nil {
		return fmt.Errorf("read newest revision: %w", err)
	}
	cutoff -= int64(s.maxRevisions)

	if _, err := s.db.Conn().ExecContext(ctx,
		s.db.rebind(`DELETE FROM document_revisions WHERE document_id = ? AND revision <= ?`), id, cutoff,
	); err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}
	return nil
}
