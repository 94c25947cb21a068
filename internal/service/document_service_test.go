package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caldershaw/ragd/internal/ingest"
	"github.com/caldershaw/ragd/internal/model"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/vecstore"
)

type captureStore struct {
	docs    []model.Document
	deleted bool
	count   int64
}

func (c *captureStore) Query(ctx context.Context, collection string, queryTexts []string, opts vecstore.QueryOptions) ([]model.RetrievedSnippet, error) {
	return nil, nil
}

func (c *captureStore) EnsureCollection(ctx context.Context, collection string) error { return nil }

func (c *captureStore) Upsert(ctx context.Context, collection string, docs []model.Document) error {
	c.docs = append(c.docs, docs...)
	return nil
}

func (c *captureStore) DeleteAll(ctx context.Context, collection string) error {
	c.deleted = true
	return nil
}

func (c *captureStore) Count(ctx context.Context, collection string) (int64, error) {
	return c.count, nil
}

func newTestDocumentService(store vecstore.Store) (*DocumentService, *int) {
	cleared := 0
	svc := NewDocumentService(store, "docs", ingest.NewChunker(100), func() { cleared++ })
	return svc, &cleared
}

func TestAddSingleChunk(t *testing.T) {
	store := &captureStore{}
	svc, cleared := newTestDocumentService(store)

	chunks, err := svc.Add(context.Background(), DocumentInput{ID: "doc-1", Content: "short text"})
	require.NoError(t, err)
	require.Equal(t, 1, chunks)
	require.Len(t, store.docs, 1)
	require.Equal(t, "doc-1", store.docs[0].ID)
	require.Equal(t, "doc-1", store.docs[0].Metadata["source_id"])
	require.Equal(t, 0, store.docs[0].Metadata["chunk_index"])
	require.Equal(t, 1, store.docs[0].Metadata["chunk_total"])
	require.Equal(t, 1, *cleared)
}

func TestAddSplitsLongDocument(t *testing.T) {
	store := &captureStore{}
	svc, _ := newTestDocumentService(store)

	content := strings.Repeat("word ", 100)
	chunks, err := svc.Add(context.Background(), DocumentInput{ID: "doc-1", Content: content})
	require.NoError(t, err)
	require.Greater(t, chunks, 1)
	require.Equal(t, "doc-1#0", store.docs[0].ID)
	require.Equal(t, "doc-1#1", store.docs[1].ID)
	for i, doc := range store.docs {
		require.Equal(t, i, doc.Metadata["chunk_index"])
		require.Equal(t, len(store.docs), doc.Metadata["chunk_total"])
	}
}

func TestAddGeneratesID(t *testing.T) {
	store := &captureStore{}
	svc, _ := newTestDocumentService(store)

	_, err := svc.Add(context.Background(), DocumentInput{Content: "text"})
	require.NoError(t, err)
	require.NotEmpty(t, store.docs[0].ID)
}

func TestAddCarriesMetadata(t *testing.T) {
	store := &captureStore{}
	svc, _ := newTestDocumentService(store)

	_, err := svc.Add(context.Background(), DocumentInput{
		ID:       "doc-1",
		Content:  "text",
		Metadata: map[string]interface{}{"lang": "en"},
	})
	require.NoError(t, err)
	require.Equal(t, "en", store.docs[0].Metadata["lang"])
}

func TestAddBulkRejectsEmpty(t *testing.T) {
	svc, _ := newTestDocumentService(&captureStore{})

	_, err := svc.AddBulk(context.Background(), nil)
	require.ErrorIs(t, err, apperrors.ErrInvalid)

	_, err = svc.AddBulk(context.Background(), []DocumentInput{{Content: "  "}})
	require.ErrorIs(t, err, apperrors.ErrInvalid)
}

func TestDeleteAllClearsCache(t *testing.T) {
	store := &captureStore{}
	svc, cleared := newTestDocumentService(store)

	require.NoError(t, svc.DeleteAll(context.Background()))
	require.True(t, store.deleted)
	require.Equal(t, 1, *cleared)
}

func TestCount(t *testing.T) {
	svc, _ := newTestDocumentService(&captureStore{count: 42})
	count, err := svc.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, count)
}
