package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	// Kick runs a scheduled job immediately, off the cron cadence.
	Kick(name string)
	Start(ctx context.Context)
	Stop()
}

type CronScheduler struct {
	cron    *cron.Cron
	runners map[string]func()
	ctx     context.Context
}

func NewCronScheduler() *CronScheduler {
	// Descriptor enables "@every 15m" style specs alongside plain cron lines
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		runners: make(map[string]func()),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	runner := c.wrap(job, spec)
	if _, err := c.cron.AddFunc(spec, runner); err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.runners[name] = runner
	logger.Info("job scheduled")
	return nil
}

func (c *CronScheduler) Kick(name string) {
	runner, ok := c.runners[name]
	if !ok {
		logutil.GetLogger(context.Background()).Warn("kick unknown job", zap.String("job", name))
		return
	}
	go runner()
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).With(
				zap.String("job", job.Name()),
				zap.String("spec", spec),
			).Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(
			zap.String("job", job.Name()),
			zap.String("spec", spec),
		)
		start := time.Now()
		logger.Info("job started")
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}

// EverySpec renders a minute interval as a descriptor spec.
func EverySpec(minutes int) string {
	if minutes <= 0 {
		minutes = 1
	}
	return fmt.Sprintf("@every %dm", minutes)
}
