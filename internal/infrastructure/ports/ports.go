// Package ports declares the interfaces the server side of the mock depends on.
package ports

import (
	"context"
	"time"

	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/trace"
)

// Clock provides the current time (for testing).
type Clock interface {
	Now() time.Time
	// SleepContext blocks for d or until ctx is cancelled. Returns ctx.Err() if cancelled.
	SleepContext(ctx context.Context, d time.Duration) error
}

// Logger provides structured logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// RateLimiter checks whether a request is allowed under rate limits.
type RateLimiter interface {
	// Allow checks if a request identified by key is within the rate limit.
	// rate is tokens per second, burst is the max burst size.
	Allow(ctx context.Context, key string, rate float64, burst int) bool
	// Reset forgets every bucket.
	Reset()
}

// TemplateCompiler compiles a response body template for a named engine.
type TemplateCompiler interface {
	Compile(engine, name, source string) (rule.BodyRenderer, error)
}

// TraceStore keeps recent dispatch entries.
type TraceStore interface {
	trace.Debugger
	Last(n int) []trace.Entry
	Reset()
}
