package rule

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Action mutates the response under construction. Returning an error aborts
// the response; the error is what the dispatch returns.
type Action interface {
	Apply(b *ResponseBuilder) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(b *ResponseBuilder) error

func (f ActionFunc) Apply(b *ResponseBuilder) error { return f(b) }

// Bundle is the ordered list of actions that produces one response.
type Bundle []Action

// Apply runs every action in order against a fresh builder for req.
func (bundle Bundle) Apply(req *Request) (*Response, error) {
	b := NewResponseBuilder(req)
	for _, a := range bundle {
		if err := a.Apply(b); err != nil {
			return nil, err
		}
	}
	return b.Response(), nil
}

// SetStatus sets the status code.
func SetStatus(code int) Action {
	return ActionFunc(func(b *ResponseBuilder) error {
		b.Status = code
		return nil
	})
}

// SetHeader replaces the values of a header.
func SetHeader(name, value string) Action {
	return ActionFunc(func(b *ResponseBuilder) error {
		b.Header.Set(name, value)
		return nil
	})
}

// AddHeader appends a header value.
func AddHeader(name, value string) Action {
	return ActionFunc(func(b *ResponseBuilder) error {
		b.Header.Add(name, value)
		return nil
	})
}

// SetBody sets the body bytes.
func SetBody(body []byte) Action {
	return ActionFunc(func(b *ResponseBuilder) error {
		b.Body = body
		return nil
	})
}

// ErrNilConfiguredError is returned by a Fail action built with a nil error.
var ErrNilConfiguredError = errors.New("rule: Fail called with nil error")

// Fail makes the response fail with err, returned unchanged to the caller.
func Fail(err error) Action {
	if err == nil {
		err = ErrNilConfiguredError
	}
	return failAction{err: err}
}

type failAction struct {
	err error
}

func (a failAction) Apply(*ResponseBuilder) error { return a.err }

// BodyRenderer renders a response body from the request.
type BodyRenderer interface {
	Render(ctx RenderContext) ([]byte, error)
}

// RenderContext is the request data exposed to body templates.
type RenderContext struct {
	Method      string
	Path        string
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Body        []byte
	Now         string // RFC 3339
}

// NewRenderContext flattens req for templates. Multi-valued headers and
// parameters expose their first value.
func NewRenderContext(req *Request, now time.Time) RenderContext {
	ctx := RenderContext{
		Method:      req.Method,
		Headers:     make(map[string]string, len(req.Header)),
		QueryParams: make(map[string]string),
		Body:        req.Body,
		Now:         now.UTC().Format(time.RFC3339),
	}
	for k := range req.Header {
		ctx.Headers[http.CanonicalHeaderKey(k)] = req.Header.Get(k)
	}
	if req.URL != nil {
		ctx.Path = req.URL.Path
		ctx.URL = req.URL.String()
		for k, v := range req.URL.Query() {
			if len(v) > 0 {
				ctx.QueryParams[k] = v[0]
			}
		}
	}
	return ctx
}

// RenderBody sets the body to the output of r for the request being answered.
func RenderBody(r BodyRenderer, now func() time.Time) Action {
	if now == nil {
		now = time.Now
	}
	return ActionFunc(func(b *ResponseBuilder) error {
		if b.Request == nil {
			return errors.New("rule: render body without a request")
		}
		body, err := r.Render(NewRenderContext(b.Request, now()))
		if err != nil {
			return fmt.Errorf("failed to render response body: %w", err)
		}
		b.Body = body
		return nil
	})
}
