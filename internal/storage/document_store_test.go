package storage_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/storage"
)

func openStore(t *testing.T, maxRevisions int) *storage.DocumentStore {
	t.Helper()
	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "kits", "mediakit.db"))
	require.NoError(t, err)
	s := storage.NewDocumentStore(db, maxRevisions, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDocumentStore_LoadMissing(t *testing.T) {
	s := openStore(t, 0)
	doc, err := s.LoadDocument(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestDocumentStore_SaveAndLoad(t *testing.T) {
	s := openStore(t, 0)
	ctx := context.Background()

	first, err := s.SaveDocument(ctx, "kit", json.RawMessage(`{"layout":["a"]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Revision)

	second, err := s.SaveDocument(ctx, "kit", json.RawMessage(`{"layout":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Revision)

	got, err := s.LoadDocument(ctx, "kit")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Revision)
	assert.JSONEq(t, `{"layout":["a","b"]}`, string(got.State))

	old, err := s.LoadRevision(ctx, "kit", 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"layout":["a"]}`, string(old.State))

	// Documents are independent.
	other, err := s.SaveDocument(ctx, "other", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Revision)
}

func TestDocumentStore_PrunesOldRevisions(t *testing.T) {
	s := openStore(t, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.SaveDocument(ctx, "kit", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
		require.NoError(t, err)
	}

	revs, err := s.ListRevisions(ctx, "kit")
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.Equal(t, int64(5), revs[0].Revision)
	assert.Equal(t, int64(3), revs[2].Revision)
	assert.Equal(t, len(`{"n":4}`), revs[0].Size)

	gone, err := s.LoadRevision(ctx, "kit", 1)
	require.NoError(t, err)
	assert.Nil(t, gone)

	latest, err := s.LoadDocument(ctx, "kit")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":4}`, string(latest.State))
}

// A failed prune leaves extra history behind but never fails the save that
// already committed.
func TestDocumentStore_PruneFailureKeepsSave(t *testing.T) {
	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "mediakit.db"))
	require.NoError(t, err)
	_, err = db.Conn().Exec(`CREATE TRIGGER keep_revisions BEFORE DELETE ON document_revisions
		BEGIN SELECT RAISE(FAIL, 'revisions are read-only'); END`)
	require.NoError(t, err)

	var buf bytes.Buffer
	s := storage.NewDocumentStore(db, 1, log.New(&buf))
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	_, err = s.SaveDocument(ctx, "kit", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	second, err := s.SaveDocument(ctx, "kit", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Revision)
	assert.Contains(t, buf.String(), "prune revisions failed")

	latest, err := s.LoadDocument(ctx, "kit")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(latest.State))
	revs, err := s.ListRevisions(ctx, "kit")
	require.NoError(t, err)
	assert.Len(t, revs, 2)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := storage.Open("oracle", "x")
	assert.Error(t, err)
}
