package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/repo"
)

type EmbeddingCacheCleanupJob struct {
	repo     *repo.EmbeddingCacheRepo
	keepDays int
}

func NewEmbeddingCacheCleanupJob(repo *repo.EmbeddingCacheRepo, keepDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{repo: repo, keepDays: keepDays}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	keepDays := j.keepDays
	if keepDays <= 0 {
		keepDays = 30
	}
	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour).UnixMilli()
	dropped, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if dropped > 0 {
		logutil.GetLogger(ctx).Info("stale embedding cache entries dropped", zap.Int64("count", dropped))
	}
	return nil
}
