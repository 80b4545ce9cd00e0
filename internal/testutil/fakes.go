// Package testutil holds hand-written fakes for the server-side ports.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/trace"
	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
)

var _ ports.Logger = (*NoopLogger)(nil)

// NoopLogger discards all log output.
type NoopLogger struct{}

func (l *NoopLogger) Info(string, ...any)  {}
func (l *NoopLogger) Warn(string, ...any)  {}
func (l *NoopLogger) Error(string, ...any) {}
func (l *NoopLogger) Debug(string, ...any) {}

var _ ports.Clock = (*FixedClock)(nil)

// FixedClock returns a fixed time and records requested sleeps without sleeping.
type FixedClock struct {
	T time.Time

	mu    sync.Mutex
	slept []time.Duration
}

func (c *FixedClock) Now() time.Time { return c.T }

func (c *FixedClock) SleepContext(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return ctx.Err()
}

// Slept returns the durations passed to SleepContext.
func (c *FixedClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

var _ ports.RateLimiter = (*StubRateLimiter)(nil)

// StubRateLimiter returns a configurable Allow result.
type StubRateLimiter struct {
	AllowAll bool
	Resets   int
}

func (r *StubRateLimiter) Allow(context.Context, string, float64, int) bool {
	return r.AllowAll
}

func (r *StubRateLimiter) Reset() { r.Resets++ }

var _ rule.BodyRenderer = (*StubBodyRenderer)(nil)

// StubBodyRenderer returns a configurable render result.
type StubBodyRenderer struct {
	Result []byte
	Err    error
}

func (r *StubBodyRenderer) Render(rule.RenderContext) ([]byte, error) {
	return r.Result, r.Err
}

var _ ports.TemplateCompiler = (*StubTemplateCompiler)(nil)

// StubTemplateCompiler hands out Renderer for every engine, or fails with Err.
type StubTemplateCompiler struct {
	Renderer rule.BodyRenderer
	Err      error
}

func (c *StubTemplateCompiler) Compile(string, string, string) (rule.BodyRenderer, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Renderer, nil
}

var _ trace.Debugger = (*RecordingDebugger)(nil)

// RecordingDebugger stores every entry it receives.
type RecordingDebugger struct {
	mu      sync.Mutex
	entries []trace.Entry
}

func (d *RecordingDebugger) Debug(e trace.Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, e)
}

// Entries returns a copy of the recorded entries.
func (d *RecordingDebugger) Entries() []trace.Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]trace.Entry(nil), d.entries...)
}
