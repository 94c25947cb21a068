package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes a bounded exponential backoff: Attempts total tries with
// Base delay doubling between them. The caller's context deadline still
// applies across all attempts.
type Policy struct {
	Attempts int
	Base     time.Duration
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Base <= 0 {
		p.Base = 500 * time.Millisecond
	}
	return p
}

// Do runs op under the policy, retrying transient failures. Wrap an error
// with Permanent to stop retrying immediately.
func Do(ctx context.Context, p Policy, op func() error) error {
	p = p.normalized()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Base
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.Attempts-1)), ctx))
}

func Permanent(err error) error {
	return backoff.Permanent(err)
}
