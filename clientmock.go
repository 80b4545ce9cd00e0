// Package clientmock is an in-process HTTP test double. A Mock implements
// http.RoundTripper: requests sent through its Client are answered by the
// last registered rule that matches them, and every request is recorded for
// later verification.
//
//	m := clientmock.New(clientmock.WithDefaultHost("http://localhost:8080"))
//	m.OnGet("/login").WithParameter("user", "john").
//		DoReturn("first").
//		DoReturnStatus(404)
//	resp, err := m.Client().Get("http://localhost:8080/login?user=john")
//	err = m.Verify().Get("/login").Called()
package clientmock

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sophialabs/clientmock/internal/domain/engine"
	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/trace"
	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/logging"
	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/template"
)

var _ http.RoundTripper = (*Mock)(nil)

// Option configures a Mock.
type Option func(*options)

type options struct {
	defaultHost string
	debuggers   []trace.Debugger
	now         func() time.Time
}

// WithDefaultHost joins host (an absolute URL such as "http://localhost:8080")
// into every rule and verification whose url starts with "/".
func WithDefaultHost(host string) Option {
	return func(o *options) { o.defaultHost = host }
}

// WithDebugger adds an observer of dispatch reports. It is called for
// unmatched requests, and for every request while debug mode is on.
func WithDebugger(d Debugger) Option {
	return func(o *options) {
		if d != nil {
			o.debuggers = append(o.debuggers, d)
		}
	}
}

// WithDebugWriter prints dispatch reports to w as a MATCHES/EXPECTED table.
func WithDebugWriter(w io.Writer) Option {
	return WithDebugger(trace.NewPrinter(w))
}

// WithLogger reports dispatches through logger: matches at debug level,
// misses at warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.debuggers = append(o.debuggers, logging.Debugger(logging.New(logger)))
		}
	}
}

// WithClock overrides the time source used by templates and debug reports.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Mock is a rule-driven http.RoundTripper. It is safe for concurrent use.
// A rule joins dispatch at the first request after it was registered, with
// the calls made on its builder up to that point.
type Mock struct {
	registry  *engine.Registry
	templates *template.Registry
	now       func() time.Time
}

// New creates a Mock with no rules.
func New(opts ...Option) *Mock {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	engineOpts := []engine.Option{
		engine.WithDefaultHost(o.defaultHost),
		engine.WithClock(o.now),
	}
	switch len(o.debuggers) {
	case 0:
	case 1:
		engineOpts = append(engineOpts, engine.WithDebugger(o.debuggers[0]))
	default:
		engineOpts = append(engineOpts, engine.WithDebugger(trace.Tee(o.debuggers...)))
	}

	return &Mock{
		registry:  engine.New(engineOpts...),
		templates: template.NewRegistry(),
		now:       o.now,
	}
}

// RoundTrip dispatches req to the matching rule. Unmatched requests fail
// with a *NoMatchingRuleError; errors configured with DoThrow are returned
// unchanged.
func (m *Mock) RoundTrip(req *http.Request) (*http.Response, error) {
	rr, err := toRuleRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := m.registry.Dispatch(rr)
	if err != nil {
		return nil, err
	}
	return toHTTPResponse(req, resp), nil
}

// Client returns an *http.Client whose transport is m.
func (m *Mock) Client() *http.Client {
	return &http.Client{Transport: m}
}

// Result is the outcome of an asynchronous send.
type Result struct {
	Response *http.Response
	Err      error
}

// SendAsync dispatches req and returns a channel that already holds the
// result. The channel is closed after the result is received.
func (m *Mock) SendAsync(req *http.Request) <-chan Result {
	ch := make(chan Result, 1)
	resp, err := m.RoundTrip(req)
	ch <- Result{Response: resp, Err: err}
	close(ch)
	return ch
}

// Reset removes every rule together with its consumed responses, and clears
// the request log and registration errors.
func (m *Mock) Reset() {
	m.registry.Reset()
}

// DebugOn reports every request to the debuggers, not only unmatched ones.
// Output needs an observer installed with WithDebugWriter, WithLogger or
// WithDebugger; a Mock created without one stays silent.
func (m *Mock) DebugOn() { m.registry.DebugOn() }

// DebugOff restores reporting of unmatched requests only.
func (m *Mock) DebugOff() { m.registry.DebugOff() }

// Requests returns the recorded requests in dispatch order.
func (m *Mock) Requests() []*Request {
	return m.registry.Requests()
}

// Err returns the first registration error, such as a malformed url
// pattern. Rules with an error are never matched.
func (m *Mock) Err() error {
	return m.registry.Err()
}

// toRuleRequest reads and closes the request body. Only a nil body is
// recorded as absent; http.NoBody, which net/http substitutes for empty
// readers, is an empty body.
func toRuleRequest(req *http.Request) (*rule.Request, error) {
	var body []byte
	if req.Body != nil {
		defer func() { _ = req.Body.Close() }()
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = b
		if body == nil {
			body = []byte{}
		}
	}

	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	u := *req.URL
	if u.Host == "" {
		u.Host = req.Host
	}
	return &rule.Request{
		Method: req.Method,
		URL:    &u,
		Header: header,
		Body:   body,
	}, nil
}

func toHTTPResponse(req *http.Request, resp *rule.Response) *http.Response {
	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}
}
