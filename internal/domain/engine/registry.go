// Package engine owns registered rules and the request log, dispatches
// requests to the last matching rule, and counts calls for verification.
package engine

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/trace"
	"github.com/sophialabs/clientmock/internal/domain/urlmatch"
)

// Option configures a Registry.
type Option func(*Registry)

// WithDebugger installs the observer called for unmatched requests and, in
// debug mode, for every request.
func WithDebugger(d trace.Debugger) Option {
	return func(r *Registry) {
		if d != nil {
			r.debugger = d
		}
	}
}

// WithDefaultHost joins host (an absolute URL such as "http://localhost:8080")
// into every pattern that starts with "/". A malformed host fails every such
// registration.
func WithDefaultHost(host string) Option {
	return func(r *Registry) {
		if host == "" {
			return
		}
		c, err := urlmatch.Parse(host)
		if err == nil && !strings.Contains(host, "://") {
			err = &urlmatch.MalformedPatternError{Pattern: host, Err: errors.New("default host must be an absolute URL")}
		}
		r.defaultHost = &c
		r.defaultHostErr = err
	}
}

// WithClock overrides the time source used for trace timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry holds pending builders, finalized rules and the request log.
// It is safe for concurrent use. A builder is finalized by the first
// dispatch after it was registered; calls made on it afterwards do not reach
// the rule.
type Registry struct {
	mu       sync.Mutex
	pending  []*rule.Builder
	rules    []*rule.Rule
	requests []*rule.Request
	err      error

	defaultHost    *urlmatch.Conditions
	defaultHostErr error

	debugger trace.Debugger
	debug    atomic.Bool
	now      func() time.Time
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		debugger: trace.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewBuilder creates a builder for method and pattern without registering it.
// A pattern starting with "/" is joined onto the default host, if any.
func (r *Registry) NewBuilder(method, pattern string) *rule.Builder {
	b := rule.NewBuilder(method)
	if r.defaultHost != nil && strings.HasPrefix(pattern, "/") {
		if r.defaultHostErr != nil {
			b.Fail(r.defaultHostErr)
		}
		b.JoinURL(*r.defaultHost)
	}
	return b.AddURLPattern(pattern)
}

// On creates a builder and queues it for finalization on the next dispatch.
func (r *Registry) On(method, pattern string) *rule.Builder {
	b := r.NewBuilder(method, pattern)
	r.Register(b)
	return b
}

// Expect creates a verification-only builder. It is never registered.
func (r *Registry) Expect(method, pattern string) *rule.Builder {
	label := strings.TrimSpace(method + " " + pattern)
	if label == "" {
		label = "any request"
	}
	return r.NewBuilder(method, pattern).SetID(label)
}

// Register queues b for finalization on the next dispatch.
func (r *Registry) Register(b *rule.Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, b)
}

// Replace drops every rule, pending builder, recorded request and
// registration error, and registers builders in order, all under one lock.
// A concurrent dispatch sees either the old rules or the complete new set.
func (r *Registry) Replace(builders ...*rule.Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = nil
	r.requests = nil
	r.err = nil
	r.pending = slices.Clone(builders)
	r.finalizeLocked()
}

// finalizeLocked builds every pending builder. Builders with a registration
// error are dropped and the first such error is kept.
func (r *Registry) finalizeLocked() {
	for _, b := range r.pending {
		built, err := b.Build()
		if err != nil {
			if r.err == nil {
				r.err = err
			}
			continue
		}
		r.rules = append(r.rules, built)
	}
	r.pending = nil
}

// Resolve finalizes pending builders, records req, and returns the last
// registered rule that matches it. With no match it returns a *NoMatchingRuleError.
func (r *Registry) Resolve(req *rule.Request) (*rule.Rule, error) {
	r.mu.Lock()
	r.finalizeLocked()
	r.requests = append(r.requests, req)
	rules := r.rules[:len(r.rules):len(r.rules)]
	r.mu.Unlock()

	matched := lastMatch(rules, req)
	if matched < 0 || r.debug.Load() {
		r.debugger.Debug(r.entry(req, rules, matched))
	}

	if matched < 0 {
		e := &NoMatchingRuleError{Method: req.Method}
		if req.URL != nil {
			e.URL = req.URL.String()
		}
		return nil, e
	}
	return rules[matched], nil
}

// Dispatch resolves req and produces the selected rule's next response.
// A configured error is returned unchanged.
func (r *Registry) Dispatch(req *rule.Request) (*rule.Response, error) {
	matched, err := r.Resolve(req)
	if err != nil {
		return nil, err
	}
	return matched.Produce(req)
}

// Explain evaluates req against the registered rules without recording it
// or consuming a response.
func (r *Registry) Explain(req *rule.Request) trace.Entry {
	rules := r.Rules()
	return r.entry(req, rules, lastMatch(rules, req))
}

func lastMatch(rules []*rule.Rule, req *rule.Request) int {
	for i := len(rules) - 1; i >= 0; i-- {
		if rules[i].Matches(req) {
			return i
		}
	}
	return -1
}

func (r *Registry) entry(req *rule.Request, rules []*rule.Rule, matched int) trace.Entry {
	e := trace.Entry{
		Timestamp: r.now(),
		Method:    req.Method,
		Matched:   matched,
		Rules:     make([]trace.RuleReport, len(rules)),
	}
	if req.URL != nil {
		e.URL = req.URL.String()
	}
	for i, rl := range rules {
		e.Rules[i] = rl.Report(i, req)
	}
	if matched >= 0 {
		e.MatchedID = rules[matched].ID()
	}
	return e
}

// Reset drops pending builders, finalized rules with their consumed response
// state, recorded requests and registration errors.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = nil
	r.rules = nil
	r.requests = nil
	r.err = nil
}

// DebugOn makes every dispatch report to the debugger.
func (r *Registry) DebugOn() { r.debug.Store(true) }

// DebugOff restores reporting for unmatched requests only.
func (r *Registry) DebugOff() { r.debug.Store(false) }

// Debugging reports whether debug mode is on.
func (r *Registry) Debugging() bool { return r.debug.Load() }

// Requests returns a copy of the request log in dispatch order.
func (r *Registry) Requests() []*rule.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.requests)
}

// Rules finalizes pending builders and returns the rules in registration order.
func (r *Registry) Rules() []*rule.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeLocked()
	return slices.Clone(r.rules)
}

// Err finalizes pending builders and returns the first registration error.
func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeLocked()
	return r.err
}
