// Package ratelimit spaces calls to the extraction service.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks until the next call may proceed.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Interval allows one call per interval. The first call passes immediately.
type Interval struct {
	lim      *rate.Limiter
	interval time.Duration
}

// NewInterval returns a limiter with a minimum gap of d between calls. d <= 0 disables pacing.
func NewInterval(d time.Duration) Limiter {
	if d <= 0 {
		return Unlimited()
	}
	return &Interval{lim: rate.NewLimiter(rate.Every(d), 1), interval: d}
}

func (i *Interval) Wait(ctx context.Context) error {
	return i.lim.Wait(ctx)
}

// MinInterval reports the configured gap.
func (i *Interval) MinInterval() time.Duration {
	return i.interval
}

type unlimited struct{}

// Unlimited never blocks; used by tests and when pacing is turned off.
func Unlimited() Limiter { return unlimited{} }

func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }
