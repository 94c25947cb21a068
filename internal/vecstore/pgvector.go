package vecstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/ai"
	"github.com/caldershaw/ragd/internal/model"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
)

type PgStore struct {
	db       *sqlx.DB
	embedder ai.IEmbedder
}

func NewPgStore(db *sqlx.DB, embedder ai.IEmbedder) *PgStore {
	return &PgStore{db: db, embedder: embedder}
}

type collectionRow struct {
	ID        int64 `db:"id"`
	Dimension int   `db:"dimension"`
}

func (s *PgStore) getOrCreateCollection(ctx context.Context, name string) (*collectionRow, error) {
	const insertQuery = `
		INSERT INTO collections (name, dimension, ctime) VALUES ($1, 0, $2)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insertQuery, name, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	var row collectionRow
	if err := s.db.GetContext(ctx, &row, `SELECT id, dimension FROM collections WHERE name = $1`, name); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *PgStore) getCollection(ctx context.Context, name string) (*collectionRow, error) {
	var row collectionRow
	err := s.db.GetContext(ctx, &row, `SELECT id, dimension FROM collections WHERE name = $1`, name)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// checkDimension enforces that every vector written to or queried against a
// collection agrees with the dimension recorded on first upsert. Mixing
// embedding models over one collection is a configuration error, not
// something to paper over by truncating or padding.
func checkDimension(col *collectionRow, got int) error {
	if col.Dimension != 0 && col.Dimension != got {
		return fmt.Errorf("%w: embedding dimension %d does not match collection dimension %d",
			apperrors.ErrInvalid, got, col.Dimension)
	}
	return nil
}

func (s *PgStore) EnsureCollection(ctx context.Context, collection string) error {
	_, err := s.getOrCreateCollection(ctx, collection)
	return err
}

func (s *PgStore) Upsert(ctx context.Context, collection string, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	col, err := s.getOrCreateCollection(ctx, collection)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const upsertQuery = `
		INSERT INTO documents (collection_id, doc_id, content, metadata, embedding, mtime)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (collection_id, doc_id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding, mtime = EXCLUDED.mtime
	`
	for _, doc := range docs {
		vec, err := s.embedder.Embed(ctx, doc.Content, ai.TaskTypeDocument)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		if err := checkDimension(col, len(vec)); err != nil {
			return err
		}
		if col.Dimension == 0 {
			if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = $1 WHERE id = $2`, len(vec), col.ID); err != nil {
				return err
			}
			col.Dimension = len(vec)
		}
		var metaBlob []byte
		if len(doc.Metadata) > 0 {
			metaBlob, err = json.Marshal(doc.Metadata)
			if err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, upsertQuery,
			col.ID, doc.ID, doc.Content, nullableJSON(metaBlob), pgvector.NewVector(vec), time.Now().UnixMilli()); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Debug("documents upserted",
		zap.String("collection", collection), zap.Int("count", len(docs)))
	return nil
}

func (s *PgStore) Query(ctx context.Context, collection string, queryTexts []string, opts QueryOptions) ([]model.RetrievedSnippet, error) {
	col, err := s.getCollection(ctx, collection)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if col.Dimension == 0 {
		return nil, nil
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 3
	}
	seen := make(map[string]struct{})
	var merged []model.RetrievedSnippet
	for _, text := range queryTexts {
		snippets, err := s.queryOne(ctx, col, text, topK, opts.Filters)
		if err != nil {
			return nil, err
		}
		for _, sn := range snippets {
			if _, ok := seen[sn.DocumentID]; ok {
				continue
			}
			seen[sn.DocumentID] = struct{}{}
			merged = append(merged, sn)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

func (s *PgStore) queryOne(ctx context.Context, col *collectionRow, text string, topK int, filters map[string]interface{}) ([]model.RetrievedSnippet, error) {
	vec, err := s.embedder.Embed(ctx, text, ai.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := checkDimension(col, len(vec)); err != nil {
		return nil, err
	}
	query := `
		SELECT doc_id, content, metadata, embedding <-> $1 AS distance
		FROM documents
		WHERE collection_id = $2
	`
	args := []interface{}{pgvector.NewVector(vec), col.ID}
	if len(filters) > 0 {
		filterBlob, err := json.Marshal(filters)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(" AND metadata @> $%d::jsonb", len(args)+1)
		args = append(args, string(filterBlob))
	}
	query += fmt.Sprintf(" ORDER BY distance LIMIT $%d", len(args)+1)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var snippets []model.RetrievedSnippet
	for rows.Next() {
		var sn model.RetrievedSnippet
		var metaBlob []byte
		if err := rows.Scan(&sn.DocumentID, &sn.Content, &metaBlob, &sn.Distance); err != nil {
			return nil, err
		}
		if len(metaBlob) > 0 {
			if err := json.Unmarshal(metaBlob, &sn.Metadata); err != nil {
				return nil, err
			}
		}
		sn.Similarity = 1.0 / (1.0 + sn.Distance)
		snippets = append(snippets, sn)
	}
	return snippets, rows.Err()
}

func (s *PgStore) DeleteAll(ctx context.Context, collection string) error {
	col, err := s.getCollection(ctx, collection)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection_id = $1`, col.ID); err != nil {
		return err
	}
	// the next upsert is free to pick a new embedding dimension
	if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = 0 WHERE id = $1`, col.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("collection cleared", zap.String("collection", collection))
	return nil
}

func (s *PgStore) Count(ctx context.Context, collection string) (int64, error) {
	col, err := s.getCollection(ctx, collection)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents WHERE collection_id = $1`, col.ID); err != nil {
		return 0, err
	}
	return count, nil
}

// nullableJSON passes jsonb params as text so the driver does not send them
// as bytea.
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
