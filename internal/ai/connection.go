package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
)

const probeTimeout = 5 * time.Second

// ConnectionConfig fixes the backend, model and generation defaults for one
// shared connection.
type ConnectionConfig struct {
	Provider     string
	ProviderArgs interface{}
	Model        string
	Options      ChatOptions
	// Timeout bounds one synchronous generation; StreamIdle bounds the gap
	// between consecutive streamed chunks (total stream duration is
	// open-ended).
	Timeout    time.Duration
	StreamIdle time.Duration
}

// Connection is the process-wide shared handle to the LLM backend. It probes
// liveness before use and lazily recreates the underlying provider after a
// failed request or a failed probe.
type Connection struct {
	cfg ConnectionConfig

	mu       sync.Mutex
	provider IProvider
	broken   bool
}

func NewConnection(cfg ConnectionConfig) (*Connection, error) {
	provider, err := NewProvider(cfg.Provider, cfg.ProviderArgs)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.StreamIdle <= 0 {
		cfg.StreamIdle = 60 * time.Second
	}
	return &Connection{cfg: cfg, provider: provider}, nil
}

// EnsureConnection probes the backend with a model listing. On probe failure
// (or after a previous request error) the provider handle is discarded and
// recreated. Returns whether the pre-existing handle was healthy; false means
// the handle was recreated. Idempotent, safe to call before every request.
func (c *Connection) EnsureConnection(ctx context.Context) bool {
	c.mu.Lock()
	provider := c.provider
	broken := c.broken
	c.mu.Unlock()

	if provider != nil && !broken {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if _, err := provider.ListModels(probeCtx); err == nil {
			return true
		} else {
			logutil.GetLogger(ctx).Warn("inference backend probe failed", zap.Error(err))
		}
	}

	fresh, err := NewProvider(c.cfg.Provider, c.cfg.ProviderArgs)
	if err != nil {
		logutil.GetLogger(ctx).Error("recreate inference connection failed", zap.Error(err))
		return false
	}
	c.mu.Lock()
	c.provider = fresh
	c.broken = false
	c.mu.Unlock()
	logutil.GetLogger(ctx).Info("inference connection recreated", zap.String("provider", c.cfg.Provider))
	return false
}

func (c *Connection) current() (IProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider == nil {
		return nil, apperrors.ErrAIUnavailable
	}
	return c.provider, nil
}

// markBroken flags the handle so the next EnsureConnection recreates it. The
// failed request itself is never retried here.
func (c *Connection) markBroken() {
	c.mu.Lock()
	c.broken = true
	c.mu.Unlock()
}

func (c *Connection) classify(ctx context.Context, err error) error {
	c.markBroken()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.ErrInferenceTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(apperrors.ErrInference, err)
}

// Chat runs one synchronous generation under the configured timeout.
func (c *Connection) Chat(ctx context.Context, messages []Message) (string, error) {
	provider, err := c.current()
	if err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	answer, err := provider.Chat(callCtx, c.cfg.Model, messages, c.cfg.Options)
	if err != nil {
		return "", c.classify(callCtx, err)
	}
	return answer, nil
}

// StreamChat forwards each chunk to onToken in order and returns the
// assembled answer. A stall longer than the configured idle bound cancels the
// stream so an abandoned consumer cannot leak the underlying response.
func (c *Connection) StreamChat(ctx context.Context, messages []Message, onToken func(string)) (string, error) {
	provider, err := c.current()
	if err != nil {
		return "", err
	}
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(c.cfg.StreamIdle, cancel)
	defer watchdog.Stop()

	answer, err := provider.ChatStream(callCtx, c.cfg.Model, messages, c.cfg.Options, func(token string) {
		watchdog.Reset(c.cfg.StreamIdle)
		if onToken != nil {
			onToken(token)
		}
	})
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			// cancelled by the idle watchdog, not the caller
			c.markBroken()
			return "", apperrors.ErrInferenceTimeout
		}
		return "", c.classify(callCtx, err)
	}
	return answer, nil
}

// Probe issues one minimal-cost generation against the given model, keeping
// it resident in the backend. Used by the warmup scheduler only.
func (c *Connection) Probe(ctx context.Context, model string) error {
	provider, err := c.current()
	if err != nil {
		return err
	}
	one := 1
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	_, err = provider.Chat(callCtx, model, []Message{{Role: "user", Content: "ping"}}, ChatOptions{MaxTokens: &one})
	return err
}
