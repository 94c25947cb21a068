package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/model"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
	"github.com/caldershaw/ragd/internal/pkg/retry"
	"github.com/caldershaw/ragd/internal/querycache"
	"github.com/caldershaw/ragd/internal/vecstore"
)

type Config struct {
	Collection    string
	TopK          int
	MaxQueryChars int
	Retry         retry.Policy
	MMREnable     bool
	MMRLambda     float64
}

// Result is one retrieval pass, with enough detail for callers to report
// timing and cache behavior.
type Result struct {
	Snippets []model.RetrievedSnippet
	TimingMs int64
	CacheHit bool
}

// Engine fronts the vector store with a result cache and retry on transient
// index failures.
type Engine struct {
	store vecstore.Store
	cache *querycache.Cache
	cfg   Config
}

func NewEngine(store vecstore.Store, cache *querycache.Cache, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Engine{store: store, cache: cache, cfg: cfg}
}

func (e *Engine) Retrieve(ctx context.Context, queryTexts []string, filters map[string]interface{}) (*Result, error) {
	start := time.Now()
	texts := make([]string, 0, len(queryTexts))
	for _, q := range queryTexts {
		if q == "" {
			continue
		}
		texts = append(texts, e.truncateQuery(q))
	}
	if len(texts) == 0 {
		return nil, apperrors.ErrInvalid
	}

	key := querycache.Key(e.cfg.Collection, e.cfg.TopK, texts, filters)
	if snippets, ok := e.cache.Get(key); ok {
		return &Result{
			Snippets: e.postFilter(texts, snippets),
			TimingMs: time.Since(start).Milliseconds(),
			CacheHit: true,
		}, nil
	}

	var snippets []model.RetrievedSnippet
	err := retry.Do(ctx, e.cfg.Retry, func() error {
		var qerr error
		snippets, qerr = e.store.Query(ctx, e.cfg.Collection, texts, vecstore.QueryOptions{
			TopK:    e.cfg.TopK,
			Filters: filters,
		})
		if qerr != nil && errors.Is(qerr, apperrors.ErrInvalid) {
			return retry.Permanent(qerr)
		}
		return qerr
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalid) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		logutil.GetLogger(ctx).Error("similarity search failed after retries",
			zap.String("collection", e.cfg.Collection), zap.Error(err))
		return nil, errors.Join(apperrors.ErrIndexUnavailable, err)
	}
	e.cache.Put(key, snippets)
	return &Result{
		Snippets: e.postFilter(texts, snippets),
		TimingMs: time.Since(start).Milliseconds(),
	}, nil
}

// ClearCache drops memoized results. Call after any document mutation.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

func (e *Engine) truncateQuery(q string) string {
	max := e.cfg.MaxQueryChars
	if max <= 0 {
		return q
	}
	runes := []rune(q)
	if len(runes) <= max {
		return q
	}
	return string(runes[:max])
}

func (e *Engine) postFilter(queryTexts []string, snippets []model.RetrievedSnippet) []model.RetrievedSnippet {
	if !e.cfg.MMREnable || len(snippets) <= 1 {
		return snippets
	}
	return rerankMMR(queryTexts, snippets, e.cfg.MMRLambda)
}
