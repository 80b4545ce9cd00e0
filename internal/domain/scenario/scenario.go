// Package scenario is the declarative form of a mock rule, as loaded from
// definition files.
package scenario

import (
	"strings"
	"time"
)

// Scenario is a single rule definition.
type Scenario struct {
	ID       string
	Name     string
	Priority int
	When     WhenClause
	// Responses are served in order; the last one repeats.
	Responses []Response
	Policy    *Policy

	SourceFile  string
	SourceIndex int // -1 for single-scenario files
}

// WhenClause defines the conditions a request must meet.
type WhenClause struct {
	Method string
	// URL is a pattern as accepted by the rule builder: absolute, "/"-relative or empty.
	URL string
	// Host is a bare host name or an origin such as "https://api.example.com".
	Host      string
	Path      StringMatcher
	Reference StringMatcher
	Headers   map[string]StringMatcher
	// Params constrain query parameters; every value of a parameter must match.
	Params map[string]StringMatcher
	Body   *BodyClause
}

// BodyClause represents conditions on the request body.
type BodyClause struct {
	// ContentType selects the extractor dialect: "json" (JSONPath), "gjson",
	// "xml" (XPath) or "" for the raw body.
	ContentType string
	Conditions  []BodyCondition
	All         []BodyClause
	Any         []BodyClause
	Not         *BodyClause
	// Schema is a JSON Schema document the body must validate against.
	Schema string
	// Expr is a boolean expression over the request.
	Expr string
}

// IsZero reports whether the clause constrains nothing.
func (b *BodyClause) IsZero() bool {
	return b == nil || (len(b.Conditions) == 0 && len(b.All) == 0 && len(b.Any) == 0 &&
		b.Not == nil && b.Schema == "" && b.Expr == "")
}

// BodyCondition extracts a value from the body and matches it.
type BodyCondition struct {
	Extractor string
	Matcher   StringMatcher
}

// MatchKind is the comparison a StringMatcher applies.
type MatchKind string

const (
	MatchAny   MatchKind = ""
	MatchExact MatchKind = "exact"
	MatchRegex MatchKind = "regex"
	MatchGlob  MatchKind = "glob"
)

// StringMatcher is a textual matching rule. In definition files "=v" is an
// exact match, "glob:p" a glob and anything else a regular expression.
type StringMatcher struct {
	Kind  MatchKind
	Value string
}

// Exact returns an exact matcher for v.
func Exact(v string) StringMatcher {
	return StringMatcher{Kind: MatchExact, Value: v}
}

// IsZero reports whether the matcher accepts anything.
func (m StringMatcher) IsZero() bool {
	return m.Kind == MatchAny || (m.Kind == MatchRegex && m.Value == "")
}

// Response describes one response in the sequence.
type Response struct {
	Status      int
	Headers     map[string]string
	Body        string
	BodyFile    string
	ContentType string
	// Charset encodes the body, e.g. "ISO-8859-1". Empty means UTF-8.
	Charset string
	Engine  string // "" = static, "expr", "jinja2"
	// JSONFields are set in the produced JSON body by path.
	JSONFields map[string]any
	// Error, when set, makes the response fail with this message instead.
	Error string
}

// Policy defines rate limiting and latency simulation.
type Policy struct {
	RateLimit *RateLimit
	Latency   *Latency
}

// RateLimit configures token-bucket rate limiting.
type RateLimit struct {
	Rate  float64
	Burst int
	// Key selects the bucket: "" shares one bucket per rule, "header:<Name>"
	// buckets by header value.
	Key string
}

// Latency configures response delay simulation.
type Latency struct {
	Fixed  time.Duration
	Jitter time.Duration
}

// ParseMatcher reads the textual matcher notation: "=v" is exact, "glob:p"
// a glob, anything else a regular expression and "" matches anything.
func ParseMatcher(raw string) StringMatcher {
	switch {
	case raw == "":
		return StringMatcher{}
	case strings.HasPrefix(raw, "="):
		return Exact(raw[1:])
	case strings.HasPrefix(raw, "glob:"):
		return StringMatcher{Kind: MatchGlob, Value: raw[len("glob:"):]}
	default:
		return StringMatcher{Kind: MatchRegex, Value: raw}
	}
}
