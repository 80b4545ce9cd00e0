// Package rule holds the building blocks of a mock rule: the request and
// response model, conditions, actions, and the rule itself.
package rule

import (
	"net/http"
	"net/url"
	"strings"
)

// Request is an HTTP request in domain terms. A nil Body means the request
// carried no body, which is distinct from an empty one.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// HasBody reports whether the request carried a body.
func (r *Request) HasBody() bool {
	return r.Body != nil
}

// BodyText decodes the body as UTF-8, replacing invalid sequences.
func (r *Request) BodyText() string {
	return strings.ToValidUTF8(string(r.Body), "�")
}

// String returns "METHOD URL".
func (r *Request) String() string {
	if r.URL == nil {
		return r.Method
	}
	return r.Method + " " + r.URL.String()
}

// Response is a produced response descriptor.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// ResponseBuilder is the response under construction that actions mutate.
type ResponseBuilder struct {
	// Request is the request being answered, for actions that echo it.
	Request *Request

	Status int
	Header http.Header
	Body   []byte
}

// NewResponseBuilder starts a 200 response with no headers and an empty body.
func NewResponseBuilder(req *Request) *ResponseBuilder {
	return &ResponseBuilder{
		Request: req,
		Status:  http.StatusOK,
		Header:  make(http.Header),
		Body:    []byte{},
	}
}

// Response freezes the builder into a Response.
func (b *ResponseBuilder) Response() *Response {
	return &Response{
		Status: b.Status,
		Header: b.Header.Clone(),
		Body:   b.Body,
	}
}
