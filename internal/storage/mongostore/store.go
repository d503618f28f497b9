// Package mongostore keeps saved documents in MongoDB.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mediakit/internal/domain"
	"mediakit/internal/logging"
)

const (
	documentsCollection = "documents"
	revisionsCollection = "document_revisions"
)

// Store implements domain.DocumentStore. The documents collection holds a
// revision counter per document; each save inserts one revision record.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	maxRevisions int
	logger       *log.Logger
	now          func() time.Time
}

var _ domain.DocumentStore = (*Store)(nil)

type documentRecord struct {
	ID        string `bson:"_id"`
	Revision  int64  `bson:"revision"`
	UpdatedAt int64  `bson:"updated_at"`
}

type revisionRecord struct {
	DocumentID string `bson:"document_id"`
	Revision   int64  `bson:"revision"`
	State      string `bson:"state"`
	Size       int    `bson:"size"`
	CreatedAt  int64  `bson:"created_at"`
}

// Open connects to uri and uses database dbName.
func Open(ctx context.Context, uri, dbName string, maxRevisions int, logger *log.Logger) (*Store, error) {
	if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		uri = "mongodb://" + uri
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	if maxRevisions <= 0 {
		maxRevisions = 40
	}
	s := &Store{
		client:       client,
		db:           client.Database(dbName),
		maxRevisions: maxRevisions,
		logger:       logging.OrDiscard(logger).WithPrefix("mongostore"),
		now:          time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(revisionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "document_id", Value: 1}, {Key: "revision", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create revision index: %w", err)
	}
	return nil
}

// SaveDocument bumps the document's revision counter and stores state under
// the new number.
func (s *Store) SaveDocument(ctx context.Context, id string, state json.RawMessage) (*domain.StoredDocument, error) {
	now := s.now().UnixMilli()
	var doc documentRecord
	err := s.db.Collection(documentsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"revision": 1}, "$set": bson.M{"updated_at": now}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("bump revision: %w", err)
	}

	if _, err := s.db.Collection(revisionsCollection).InsertOne(ctx, revisionRecord{
		DocumentID: id,
		Revision:   doc.Revision,
		State:      string(state),
		Size:       len(state),
		CreatedAt:  now,
	}); err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}

	if cutoff := doc.Revision - int64(s.maxRevisions); cutoff > 0 {
		if _, err := s.db.Collection(revisionsCollection).DeleteMany(ctx,
			bson.M{"document_id": id, "revision": bson.M{"$lte": cutoff}},
		); err != nil {
			s.logger.Warn("prune revisions failed", "document", id, "revision", doc.Revision, "err", err)
		}
	}
	return &domain.StoredDocument{ID: id, State: state, Revision: doc.Revision, UpdatedAt: time.UnixMilli(now)}, nil
}

func (s *Store) LoadDocument(ctx context.Context, id string) (*domain.StoredDocument, error) {
	var doc documentRecord
	err := s.db.Collection(documentsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return s.LoadRevision(ctx, id, doc.Revision)
}

func (s *Store) LoadRevision(ctx context.Context, id string, revision int64) (*domain.StoredDocument, error) {
	var rec revisionRecord
	err := s.db.Collection(revisionsCollection).FindOne(ctx,
		bson.M{"document_id": id, "revision": revision},
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load revision %s@%d: %w", id, revision, err)
	}
	return &domain.StoredDocument{
		ID:        id,
		State:     json.RawMessage(rec.State),
		Revision:  rec.Revision,
		UpdatedAt: time.UnixMilli(rec.CreatedAt),
	}, nil
}

// ListRevisions returns the stored revisions, newest first, without their
// state payloads.
func (s *Store) ListRevisions(ctx context.Context, id string) ([]domain.Revision, error) {
	cursor, err := s.db.Collection(revisionsCollection).Find(ctx,
		bson.M{"document_id": id},
		options.Find().
			SetSort(bson.D{{Key: "revision", Value: -1}}).
			SetProjection(bson.M{"state": 0}),
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.Revision
	for cursor.Next(ctx) {
		var rec revisionRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode revision: %w", err)
		}
		out = append(out, domain.Revision{
			DocumentID: id,
			Revision:   rec.Revision,
			Size:       rec.Size,
			CreatedAt:  time.UnixMilli(rec.CreatedAt),
		})
	}
	return out, cursor.Err()
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
