package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/ai"
)

// WarmupJob pings each configured model with a minimal generation so the
// backend keeps it loaded. Failures are logged only; the serving path is
// never affected by a bad warmup round.
type WarmupJob struct {
	conn   *ai.Connection
	models []string
}

func NewWarmupJob(conn *ai.Connection, models []string) *WarmupJob {
	return &WarmupJob{conn: conn, models: models}
}

func (j *WarmupJob) Name() string {
	return "model_warmup"
}

func (j *WarmupJob) Run(ctx context.Context) error {
	j.conn.EnsureConnection(ctx)
	for _, m := range j.models {
		if err := j.conn.Probe(ctx, m); err != nil {
			logutil.GetLogger(ctx).Warn("model warmup failed", zap.String("model", m), zap.Error(err))
			continue
		}
		logutil.GetLogger(ctx).Debug("model warmed", zap.String("model", m))
	}
	return nil
}
