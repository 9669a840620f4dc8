package erp

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// retryPolicy retries transport failures with exponential backoff and
// jitter. Auth, validation and remote application errors pass through
// untouched.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	factor     float64
	jitter     float64
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration) *retryPolicy {
	return &retryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		factor:     2.0,
		jitter:     0.2,
	}
}

// Do runs fn, retrying it while it fails with sync.ErrTransport. The
// last error is returned once attempts are exhausted or the context is
// cancelled during a backoff wait.
func (p *retryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	delay := p.baseDelay
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, sync.ErrTransport) {
			return err
		}
		if attempt >= p.maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.withJitter(delay)):
		}
		delay = time.Duration(float64(delay) * p.factor)
	}
}

func (p *retryPolicy) withJitter(d time.Duration) time.Duration {
	if p.jitter <= 0 {
		return d
	}
	spread := 1 + p.jitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * spread)
}
