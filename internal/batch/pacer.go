package batch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out the items of a batch. The driver calls Wait before every
// item except the first.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer allows at most one item start per interval.
type RatePacer struct {
	limiter *rate.Limiter
}

// NewRatePacer returns a pacer that enforces delay between item starts.
// A zero or negative delay returns NopPacer.
func NewRatePacer(delay time.Duration) Pacer {
	if delay <= 0 {
		return NopPacer{}
	}
	// Burst of 1: strict spacing, no catching up after a slow item.
	limiter := rate.NewLimiter(rate.Every(delay), 1)
	// The bucket starts full; that token belongs to the first item, which never waits.
	limiter.Allow()
	return &RatePacer{limiter: limiter}
}

// Wait blocks until the next item may start or ctx is done.
func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NopPacer never waits, but still reports a cancelled context.
type NopPacer struct{}

func (NopPacer) Wait(ctx context.Context) error { return ctx.Err() }
