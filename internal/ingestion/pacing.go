package ingestion

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces calls to a rate-limited provider by a minimum interval.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call may start. It fails early when ctx would
// expire before then.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
