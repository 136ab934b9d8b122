package crawl

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces fetches against a single host. The first request passes
// immediately; every later one waits until the configured interval has
// elapsed since the previous request.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer for the given inter-request delay. A zero or
// negative delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request slot opens or ctx is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pace request: %w", err)
	}
	return nil
}
