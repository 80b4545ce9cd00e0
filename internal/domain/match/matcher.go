package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher is a described predicate over an optional text value.
// The zero Matcher accepts any value, including a missing one.
type Matcher struct {
	test        Predicate
	absent      bool
	description string
}

// New wraps p in a Matcher. A missing value is rejected.
func New(description string, p Predicate) Matcher {
	if p == nil {
		p = Never()
	}
	return Matcher{test: p, description: description}
}

// Matches reports whether s is accepted.
func (m Matcher) Matches(s string) bool {
	if m.test == nil {
		return true
	}
	return m.test(s)
}

// MatchesAbsent reports whether a missing value is accepted.
func (m Matcher) MatchesAbsent() bool {
	return m.test == nil || m.absent
}

// IsZero reports whether m is the zero Matcher.
func (m Matcher) IsZero() bool {
	return m.test == nil
}

// Predicate returns m as a plain predicate.
func (m Matcher) Predicate() Predicate {
	return m.Matches
}

func (m Matcher) String() string {
	if m.description != "" {
		return m.description
	}
	if m.test == nil {
		return "anything"
	}
	return "custom matcher"
}

// Any accepts every value, including a missing one.
func Any() Matcher {
	return Matcher{test: Always(), absent: true, description: "anything"}
}

// Empty accepts the empty string and a missing value.
func Empty() Matcher {
	return Matcher{
		test:        func(s string) bool { return s == "" },
		absent:      true,
		description: "empty",
	}
}

// Equal accepts exactly want.
func Equal(want string) Matcher {
	return New(strconv.Quote(want), func(s string) bool { return s == want })
}

// EqualFold accepts values equal to want under Unicode case folding.
func EqualFold(want string) Matcher {
	return New(strconv.Quote(want)+" ignoring case", func(s string) bool { return strings.EqualFold(s, want) })
}

// Contains accepts values containing sub.
func Contains(sub string) Matcher {
	return New("containing "+strconv.Quote(sub), func(s string) bool { return strings.Contains(s, sub) })
}

// HasPrefix accepts values starting with prefix.
func HasPrefix(prefix string) Matcher {
	return New("starting with "+strconv.Quote(prefix), func(s string) bool { return strings.HasPrefix(s, prefix) })
}

// HasSuffix accepts values ending with suffix.
func HasSuffix(suffix string) Matcher {
	return New("ending with "+strconv.Quote(suffix), func(s string) bool { return strings.HasSuffix(s, suffix) })
}

// Regex accepts values matched by the regular expression pattern.
func Regex(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Matcher{}, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return New("matching /"+pattern+"/", re.MatchString), nil
}

// MustRegex is like Regex but panics on an invalid pattern.
func MustRegex(pattern string) Matcher {
	m, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Glob accepts values matched by a doublestar glob pattern ("/api/**", "*.json").
func Glob(pattern string) (Matcher, error) {
	if !doublestar.ValidatePattern(pattern) {
		return Matcher{}, fmt.Errorf("invalid glob pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return New("matching glob "+strconv.Quote(pattern), func(s string) bool {
		ok, err := doublestar.Match(pattern, s)
		return err == nil && ok
	}), nil
}

// MustGlob is like Glob but panics on an invalid pattern.
func MustGlob(pattern string) Matcher {
	m, err := Glob(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Func builds a Matcher from an arbitrary function.
func Func(description string, fn func(string) bool) Matcher {
	return New(description, fn)
}

// AllOf accepts a value when every matcher does.
func AllOf(matchers ...Matcher) Matcher {
	preds := make([]Predicate, len(matchers))
	absent := true
	for i, m := range matchers {
		preds[i] = m.Predicate()
		absent = absent && m.MatchesAbsent()
	}
	return Matcher{test: And(preds...), absent: absent, description: join("all of", matchers)}
}

// AnyOf accepts a value when at least one matcher does.
func AnyOf(matchers ...Matcher) Matcher {
	preds := make([]Predicate, len(matchers))
	absent := false
	for i, m := range matchers {
		preds[i] = m.Predicate()
		absent = absent || m.MatchesAbsent()
	}
	return Matcher{test: Or(preds...), absent: absent, description: join("any of", matchers)}
}

// Negate inverts m, including its handling of a missing value.
func Negate(m Matcher) Matcher {
	return Matcher{test: Not(m.Predicate()), absent: !m.MatchesAbsent(), description: "not " + m.String()}
}

func join(prefix string, matchers []Matcher) string {
	parts := make([]string, len(matchers))
	for i, m := range matchers {
		parts[i] = m.String()
	}
	return prefix + " (" + strings.Join(parts, ", ") + ")"
}
