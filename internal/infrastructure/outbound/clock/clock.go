// Package clock provides the system implementation of ports.Clock.
package clock

import (
	"context"
	"time"

	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
)

var _ ports.Clock = (*RealClock)(nil)

// RealClock implements ports.Clock using the system clock.
type RealClock struct{}

// New creates a new RealClock.
func New() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time { return time.Now() }

// SleepContext waits for d. A non-positive d returns immediately unless ctx is done.
func (c *RealClock) SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NowFunc adapts c for APIs that take a time source function.
func NowFunc(c ports.Clock) func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}
