// Package urlmatch decomposes URL patterns into per-component matchers and
// tests request URLs against them.
package urlmatch

import (
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/trace"
)

// component is a matcher that is either unset (wildcard) or set.
type component struct {
	set bool
	m   match.Matcher
}

func (c component) matches(s string) bool {
	return !c.set || c.m.Matches(s)
}

func (c component) override(o component) component {
	if o.set {
		return o
	}
	return c
}

func setTo(m match.Matcher) component {
	return component{set: true, m: m}
}

// Conditions is the decomposition of a URL pattern. The zero value accepts every URL.
// Conditions values are immutable; Join returns a new value.
type Conditions struct {
	scheme   component
	host     component
	port     component
	path     component
	fragment component
	params   map[string]match.ValuesMatcher
}

// Any returns conditions that accept every URL.
func Any() Conditions {
	return Conditions{}
}

// Path constrains only the path.
func Path(m match.Matcher) Conditions {
	return Conditions{path: setTo(m)}
}

// Fragment constrains only the fragment (reference).
func Fragment(m match.Matcher) Conditions {
	return Conditions{fragment: setTo(m)}
}

// Param constrains a single query parameter. Once any parameter is constrained,
// the request must carry exactly the constrained parameter names.
func Param(name string, values match.ValuesMatcher) Conditions {
	return Conditions{params: map[string]match.ValuesMatcher{name: values}}
}

// Join returns base with every component set in override replacing the one in base.
// Parameter constraints are merged, override winning per name.
func Join(base, override Conditions) Conditions {
	out := Conditions{
		scheme:   base.scheme.override(override.scheme),
		host:     base.host.override(override.host),
		port:     base.port.override(override.port),
		path:     base.path.override(override.path),
		fragment: base.fragment.override(override.fragment),
	}
	if len(base.params)+len(override.params) > 0 {
		out.params = make(map[string]match.ValuesMatcher, len(base.params)+len(override.params))
		maps.Copy(out.params, base.params)
		maps.Copy(out.params, override.params)
	}
	return out
}

// HasParams reports whether any query parameter is constrained.
func (c Conditions) HasParams() bool {
	return len(c.params) > 0
}

// Matches reports whether u satisfies every set component and the parameter rule.
func (c Conditions) Matches(u *url.URL) bool {
	if u == nil {
		return false
	}
	if !c.scheme.matches(strings.ToLower(u.Scheme)) ||
		!c.host.matches(strings.ToLower(u.Hostname())) ||
		!c.port.matches(u.Port()) ||
		!c.path.matches(u.Path) ||
		!c.fragment.matches(u.Fragment) {
		return false
	}
	return c.paramsMatch(u.Query())
}

func (c Conditions) paramsMatch(query url.Values) bool {
	if len(c.params) == 0 {
		return true
	}
	if len(query) != len(c.params) {
		return false
	}
	for name, vm := range c.params {
		values, ok := query[name]
		if !ok || !vm.Matches(values) {
			return false
		}
	}
	return true
}

// Report replays Matches component by component for diagnostics. Every
// component gets a row; unconstrained ones read "anything".
func (c Conditions) Report(u *url.URL) []trace.Check {
	if u == nil {
		return []trace.Check{{Matched: false, Description: "request has a URL"}}
	}

	var checks []trace.Check
	add := func(label string, comp component, actual string) {
		checks = append(checks, trace.Check{Matched: comp.matches(actual), Description: label + " is " + comp.m.String()})
	}
	add("scheme", c.scheme, strings.ToLower(u.Scheme))
	add("host", c.host, strings.ToLower(u.Hostname()))
	add("port", c.port, u.Port())
	add("path", c.path, u.Path)
	add("reference", c.fragment, u.Fragment)

	if len(c.params) == 0 {
		return checks
	}

	query := u.Query()
	for _, name := range slices.Sorted(maps.Keys(c.params)) {
		if _, ok := query[name]; !ok {
			checks = append(checks, trace.Check{Matched: false, Description: "parameter " + name + " occurs in request"})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(query)) {
		vm, ok := c.params[name]
		if !ok {
			checks = append(checks, trace.Check{Matched: false, Description: "parameter " + name + " is redundant"})
			continue
		}
		checks = append(checks, trace.Check{
			Matched:     vm.Matches(query[name]),
			Description: "parameter " + name + " has matching value " + vm.String(),
		})
	}
	return checks
}
