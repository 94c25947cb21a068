package vecstore

import (
	"context"

	"github.com/caldershaw/ragd/internal/model"
)

// QueryOptions carries the knobs for a similarity search beyond the raw
// query text.
type QueryOptions struct {
	TopK    int
	Filters map[string]interface{}
}

// Store is the similarity index behind retrieval. Implementations embed
// query/document text themselves so callers only deal in plain strings.
type Store interface {
	// EnsureCollection creates the collection if it does not exist yet. Its
	// embedding dimension stays unset until the first upsert.
	EnsureCollection(ctx context.Context, collection string) error
	// Query runs a similarity search for each query text and returns the
	// merged nearest snippets ordered by ascending distance.
	Query(ctx context.Context, collection string, queryTexts []string, opts QueryOptions) ([]model.RetrievedSnippet, error)
	// Upsert embeds and writes the documents, replacing any existing entry
	// with the same document id.
	Upsert(ctx context.Context, collection string, docs []model.Document) error
	// DeleteAll drops every document in the collection and resets its
	// recorded embedding dimension.
	DeleteAll(ctx context.Context, collection string) error
	Count(ctx context.Context, collection string) (int64, error)
}
