package clientmock

import (
	"github.com/sophialabs/clientmock/internal/domain/engine"
	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/trace"
	"github.com/sophialabs/clientmock/internal/domain/urlmatch"
)

type (
	// Matcher is a described predicate over text.
	Matcher = match.Matcher

	// Request is a recorded request. A nil Body means none was sent.
	Request = rule.Request

	// Condition is a predicate over a request with a description for
	// debug reports.
	Condition = rule.Condition

	// Action mutates the response under construction.
	Action = rule.Action

	// ActionFunc adapts a function to Action.
	ActionFunc = rule.ActionFunc

	// ResponseDraft is the response an Action mutates.
	ResponseDraft = rule.ResponseBuilder

	// Debugger observes dispatch reports.
	Debugger = trace.Debugger

	// DebuggerFunc adapts a function to Debugger.
	DebuggerFunc = trace.DebuggerFunc

	// DebugEntry is the report of one dispatch.
	DebugEntry = trace.Entry
)

// Errors returned by RoundTrip, Err and the verification assertions.
var (
	ErrNoMatchingRule       = engine.ErrNoMatchingRule
	ErrMalformedPattern     = urlmatch.ErrMalformedPattern
	ErrVerificationMismatch = engine.ErrVerificationMismatch
)

type (
	NoMatchingRuleError       = engine.NoMatchingRuleError
	MalformedPatternError     = urlmatch.MalformedPatternError
	VerificationMismatchError = engine.VerificationMismatchError
)

// Equal accepts exactly want.
func Equal(want string) Matcher { return match.Equal(want) }

// EqualFold accepts want case-insensitively.
func EqualFold(want string) Matcher { return match.EqualFold(want) }

// Any accepts everything, including an absent body.
func Any() Matcher { return match.Any() }

// Empty accepts the empty string and an absent body.
func Empty() Matcher { return match.Empty() }

// Contains accepts values holding sub.
func Contains(sub string) Matcher { return match.Contains(sub) }

// HasPrefix accepts values starting with prefix.
func HasPrefix(prefix string) Matcher { return match.HasPrefix(prefix) }

// HasSuffix accepts values ending with suffix.
func HasSuffix(suffix string) Matcher { return match.HasSuffix(suffix) }

// AllOf accepts a value only when every matcher does.
func AllOf(matchers ...Matcher) Matcher { return match.AllOf(matchers...) }

// AnyOf accepts a value when at least one matcher does.
func AnyOf(matchers ...Matcher) Matcher { return match.AnyOf(matchers...) }

// Not inverts m, including its verdict on an absent value.
func Not(m Matcher) Matcher { return match.Negate(m) }

// Regex compiles a regular expression matcher.
func Regex(pattern string) (Matcher, error) { return match.Regex(pattern) }

// MustRegex is like Regex but panics on an invalid pattern.
func MustRegex(pattern string) Matcher { return match.MustRegex(pattern) }

// Glob compiles a doublestar glob matcher.
func Glob(pattern string) (Matcher, error) { return match.Glob(pattern) }

// MustGlob is like Glob but panics on an invalid pattern.
func MustGlob(pattern string) Matcher { return match.MustGlob(pattern) }

// MatcherFunc wraps fn as a Matcher shown as description in debug reports.
func MatcherFunc(description string, fn func(string) bool) Matcher {
	return match.Func(description, fn)
}

// Custom wraps fn as a Condition shown as description in debug reports.
func Custom(description string, fn func(*Request) bool) Condition {
	return rule.Func(description, fn)
}
