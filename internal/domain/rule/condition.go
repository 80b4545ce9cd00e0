package rule

import (
	"net/http"
	"strings"

	"github.com/sophialabs/clientmock/internal/domain/match"
)

// Condition is a pure predicate over a request. Conditions on a rule are ANDed.
type Condition interface {
	Matches(req *Request) bool
	// Describe is the expectation shown in debug output.
	Describe() string
}

// Method requires the request method to equal method (case-insensitive).
func Method(method string) Condition {
	return methodCondition{method: strings.ToUpper(method)}
}

type methodCondition struct {
	method string
}

func (c methodCondition) Matches(req *Request) bool {
	return strings.EqualFold(req.Method, c.method)
}

func (c methodCondition) Describe() string {
	return "HTTP method is " + c.method
}

// Header requires at least one value of the named header to satisfy m.
func Header(name string, m match.Matcher) Condition {
	return headerCondition{name: http.CanonicalHeaderKey(name), m: m}
}

type headerCondition struct {
	name string
	m    match.Matcher
}

func (c headerCondition) Matches(req *Request) bool {
	for _, v := range req.Header.Values(c.name) {
		if c.m.Matches(v) {
			return true
		}
	}
	return false
}

func (c headerCondition) Describe() string {
	return "header " + c.name + " is " + c.m.String()
}

// Body requires the body, decoded as UTF-8 text, to satisfy m. A request
// without a body is tested with m.MatchesAbsent.
func Body(m match.Matcher) Condition {
	return bodyCondition{m: m}
}

type bodyCondition struct {
	m match.Matcher
}

func (c bodyCondition) Matches(req *Request) bool {
	if !req.HasBody() {
		return c.m.MatchesAbsent()
	}
	return c.m.Matches(req.BodyText())
}

func (c bodyCondition) Describe() string {
	return "body matches " + c.m.String()
}

// Func wraps a caller-supplied predicate. An empty description reads "custom condition".
func Func(description string, fn func(*Request) bool) Condition {
	if description == "" {
		description = "custom condition"
	}
	return funcCondition{description: description, fn: fn}
}

type funcCondition struct {
	description string
	fn          func(*Request) bool
}

func (c funcCondition) Matches(req *Request) bool {
	return c.fn != nil && c.fn(req)
}

func (c funcCondition) Describe() string {
	return c.description
}
