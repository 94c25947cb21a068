package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/ingest"
	"github.com/caldershaw/ragd/internal/model"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/vecstore"
)

type DocumentInput struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// DocumentService ingests documents into the vector store. Every mutation
// invalidates the retrieval cache so stale result sets cannot outlive the
// data they were computed from.
type DocumentService struct {
	store      vecstore.Store
	collection string
	chunker    *ingest.Chunker
	cacheClear func()
}

func NewDocumentService(store vecstore.Store, collection string, chunker *ingest.Chunker, cacheClear func()) *DocumentService {
	return &DocumentService{store: store, collection: collection, chunker: chunker, cacheClear: cacheClear}
}

func (s *DocumentService) Add(ctx context.Context, doc DocumentInput) (int, error) {
	return s.AddBulk(ctx, []DocumentInput{doc})
}

// AddBulk chunks and upserts the documents, returning the number of chunks
// written.
func (s *DocumentService) AddBulk(ctx context.Context, docs []DocumentInput) (int, error) {
	if len(docs) == 0 {
		return 0, errors.Join(apperrors.ErrInvalid, errors.New("no documents given"))
	}
	var chunks []model.Document
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			return 0, errors.Join(apperrors.ErrInvalid, errors.New("document content is required"))
		}
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		pieces := s.chunker.Split(doc.Content)
		for i, piece := range pieces {
			meta := make(map[string]interface{}, len(doc.Metadata)+3)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta["source_id"] = id
			meta["chunk_index"] = i
			meta["chunk_total"] = len(pieces)
			chunkID := id
			if len(pieces) > 1 {
				chunkID = fmt.Sprintf("%s#%d", id, i)
			}
			chunks = append(chunks, model.Document{ID: chunkID, Content: piece, Metadata: meta})
		}
	}
	if err := s.store.Upsert(ctx, s.collection, chunks); err != nil {
		return 0, err
	}
	s.cacheClear()
	logutil.GetLogger(ctx).Info("documents ingested",
		zap.String("collection", s.collection),
		zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

func (s *DocumentService) DeleteAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx, s.collection); err != nil {
		return err
	}
	s.cacheClear()
	return nil
}

func (s *DocumentService) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx, s.collection)
}
