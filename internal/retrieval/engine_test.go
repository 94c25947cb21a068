package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caldershaw/ragd/internal/model"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/pkg/retry"
	"github.com/caldershaw/ragd/internal/querycache"
	"github.com/caldershaw/ragd/internal/vecstore"
)

type fakeStore struct {
	calls    int
	failings int
	result   []model.RetrievedSnippet
	lastOpts vecstore.QueryOptions
	lastQ    []string
}

func (f *fakeStore) Query(ctx context.Context, collection string, queryTexts []string, opts vecstore.QueryOptions) ([]model.RetrievedSnippet, error) {
	f.calls++
	f.lastOpts = opts
	f.lastQ = queryTexts
	if f.calls <= f.failings {
		return nil, errors.New("index down")
	}
	return f.result, nil
}

func (f *fakeStore) EnsureCollection(ctx context.Context, collection string) error { return nil }

func (f *fakeStore) Upsert(ctx context.Context, collection string, docs []model.Document) error {
	return nil
}

func (f *fakeStore) DeleteAll(ctx context.Context, collection string) error { return nil }

func (f *fakeStore) Count(ctx context.Context, collection string) (int64, error) { return 0, nil }

func newTestEngine(store vecstore.Store, attempts int) *Engine {
	return NewEngine(store, querycache.New(10, time.Minute), Config{
		Collection:    "docs",
		TopK:          3,
		MaxQueryChars: 50,
		Retry:         retry.Policy{Attempts: attempts, Base: time.Millisecond},
	})
}

func TestRetrieveCacheHit(t *testing.T) {
	store := &fakeStore{result: []model.RetrievedSnippet{{DocumentID: "d1"}}}
	engine := newTestEngine(store, 1)

	first, err := engine.Retrieve(context.Background(), []string{"q"}, nil)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, 1, store.calls)

	second, err := engine.Retrieve(context.Background(), []string{"q"}, nil)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, 1, store.calls)
	require.Equal(t, first.Snippets, second.Snippets)
}

func TestRetrieveClearCacheForcesFreshQuery(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store, 1)

	_, err := engine.Retrieve(context.Background(), []string{"q"}, nil)
	require.NoError(t, err)
	engine.ClearCache()
	_, err = engine.Retrieve(context.Background(), []string{"q"}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
}

func TestRetrieveRetryThenSuccess(t *testing.T) {
	store := &fakeStore{failings: 2, result: []model.RetrievedSnippet{{DocumentID: "d1"}}}
	engine := newTestEngine(store, 3)

	result, err := engine.Retrieve(context.Background(), []string{"q"}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, store.calls)
	require.Len(t, result.Snippets, 1)
}

func TestRetrieveExhaustedRetries(t *testing.T) {
	store := &fakeStore{failings: 10}
	engine := newTestEngine(store, 3)

	_, err := engine.Retrieve(context.Background(), []string{"q"}, nil)
	require.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
	require.Equal(t, 3, store.calls)
}

func TestRetrieveInvalidNotRetried(t *testing.T) {
	store := &invalidStore{}
	engine := newTestEngine(store, 3)

	_, err := engine.Retrieve(context.Background(), []string{"q"}, nil)
	require.ErrorIs(t, err, apperrors.ErrInvalid)
	require.Equal(t, 1, store.calls)
}

type invalidStore struct {
	fakeStore
}

func (f *invalidStore) Query(ctx context.Context, collection string, queryTexts []string, opts vecstore.QueryOptions) ([]model.RetrievedSnippet, error) {
	f.calls++
	return nil, apperrors.ErrInvalid
}

func TestRetrieveTruncatesLongQuery(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store, 1)

	_, err := engine.Retrieve(context.Background(), []string{strings.Repeat("x", 200)}, nil)
	require.NoError(t, err)
	require.Len(t, store.lastQ, 1)
	require.Len(t, store.lastQ[0], 50)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, 1)
	_, err := engine.Retrieve(context.Background(), []string{""}, nil)
	require.ErrorIs(t, err, apperrors.ErrInvalid)
}

func TestRetrievePassesOptions(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store, 1)

	filters := map[string]interface{}{"lang": "en"}
	_, err := engine.Retrieve(context.Background(), []string{"q"}, filters)
	require.NoError(t, err)
	require.Equal(t, 3, store.lastOpts.TopK)
	require.Equal(t, filters, store.lastOpts.Filters)
}
