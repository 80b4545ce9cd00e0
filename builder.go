package clientmock

import (
	"net/http"

	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/infrastructure/services"
)

// conditions holds the request conditions shared by rule registration and
// verification. Each method returns the owner so calls chain.
type conditions[T any] struct {
	b     *rule.Builder
	owner T
}

// WithHeader requires a header value equal to value.
func (c conditions[T]) WithHeader(name, value string) T {
	return c.WithHeaderMatching(name, match.Equal(value))
}

// WithHeaderMatching requires a header value accepted by m.
func (c conditions[T]) WithHeaderMatching(name string, m Matcher) T {
	c.b.AddCondition(rule.Header(name, m))
	return c.owner
}

// WithHeaderRegex requires a header value matching pattern. An invalid
// pattern is recorded as a registration error.
func (c conditions[T]) WithHeaderRegex(name, pattern string) T {
	m, err := match.Regex(pattern)
	if err != nil {
		c.b.Fail(err)
		return c.owner
	}
	return c.WithHeaderMatching(name, m)
}

// WithParameter requires the query parameter name to carry exactly values,
// in any order. Parameters constrain the whole query: a request with extra
// parameters does not match.
func (c conditions[T]) WithParameter(name string, values ...string) T {
	c.b.AddParameterCondition(name, match.InAnyOrder(values...))
	return c.owner
}

// WithParameterMatching requires every value of the query parameter name
// to be accepted by m.
func (c conditions[T]) WithParameterMatching(name string, m Matcher) T {
	c.b.AddParameterCondition(name, match.Each(m))
	return c.owner
}

// WithParameterRegex requires every value of the query parameter name to
// match pattern.
func (c conditions[T]) WithParameterRegex(name, pattern string) T {
	m, err := match.Regex(pattern)
	if err != nil {
		c.b.Fail(err)
		return c.owner
	}
	return c.WithParameterMatching(name, m)
}

// WithHost constrains the host, or scheme, host and port for an origin such
// as "https://api.example.com:8443".
func (c conditions[T]) WithHost(host string) T {
	c.b.AddHostCondition(host)
	return c.owner
}

// WithPath requires the path to equal path.
func (c conditions[T]) WithPath(path string) T {
	return c.WithPathMatching(match.Equal(path))
}

// WithPathMatching requires a path accepted by m.
func (c conditions[T]) WithPathMatching(m Matcher) T {
	c.b.AddPathCondition(m)
	return c.owner
}

// WithPathRegex requires the path to match pattern.
func (c conditions[T]) WithPathRegex(pattern string) T {
	m, err := match.Regex(pattern)
	if err != nil {
		c.b.Fail(err)
		return c.owner
	}
	return c.WithPathMatching(m)
}

// WithReference requires the fragment to equal ref.
func (c conditions[T]) WithReference(ref string) T {
	return c.WithReferenceMatching(match.Equal(ref))
}

// WithReferenceMatching requires a fragment accepted by m.
func (c conditions[T]) WithReferenceMatching(m Matcher) T {
	c.b.AddReferenceCondition(m)
	return c.owner
}

// WithBody requires a body accepted by m. A request without a body is
// tested with m's absent rule: only Any accepts it.
func (c conditions[T]) WithBody(m Matcher) T {
	c.b.AddCondition(rule.Body(m))
	return c.owner
}

// WithBodyJSONPath requires the JSONPath expression to select a value
// accepted by m.
func (c conditions[T]) WithBodyJSONPath(expr string, m Matcher) T {
	return c.withFallible(services.JSONPath(expr, m))
}

// WithBodyXPath requires the XPath expression to select a node whose text
// is accepted by m.
func (c conditions[T]) WithBodyXPath(expr string, m Matcher) T {
	return c.withFallible(services.XPath(expr, m))
}

// WithBodyJSONField requires the GJSON path to exist with a value accepted
// by m.
func (c conditions[T]) WithBodyJSONField(path string, m Matcher) T {
	return c.With(services.GJSON(path, m))
}

// WithBodySchema requires a JSON body valid against the JSON Schema document.
func (c conditions[T]) WithBodySchema(schema string) T {
	return c.withFallible(services.JSONSchema(schema))
}

// WithExpr requires the boolean expr-lang expression to evaluate to true.
// The expression sees method, path, url, body, json, header(name) and
// query(name).
func (c conditions[T]) WithExpr(source string) T {
	return c.withFallible(services.Expr(source))
}

// With adds a custom condition.
func (c conditions[T]) With(cond Condition) T {
	c.b.AddCondition(cond)
	return c.owner
}

func (c conditions[T]) withFallible(cond rule.Condition, err error) T {
	if err != nil {
		c.b.Fail(err)
		return c.owner
	}
	return c.With(cond)
}

// RuleBuilder configures the conditions of a registered rule. The first Do
// call switches to configuring its responses.
type RuleBuilder struct {
	conditions[*RuleBuilder]
	mock *Mock
}

func (m *Mock) newRuleBuilder(b *rule.Builder) *RuleBuilder {
	rb := &RuleBuilder{mock: m}
	rb.conditions = conditions[*RuleBuilder]{b: b, owner: rb}
	return rb
}

// On registers a rule for method and url. An empty method accepts every
// method and an empty url leaves the URL unconstrained. A url must be
// absolute or start with "/"; anything else is recorded as a registration
// error reported by Err.
func (m *Mock) On(method, url string) *RuleBuilder {
	return m.newRuleBuilder(m.registry.On(method, url))
}

// OnGet registers a GET rule.
func (m *Mock) OnGet(url string) *RuleBuilder { return m.On(http.MethodGet, url) }

// OnPost registers a POST rule.
func (m *Mock) OnPost(url string) *RuleBuilder { return m.On(http.MethodPost, url) }

// OnPut registers a PUT rule.
func (m *Mock) OnPut(url string) *RuleBuilder { return m.On(http.MethodPut, url) }

// OnDelete registers a DELETE rule.
func (m *Mock) OnDelete(url string) *RuleBuilder { return m.On(http.MethodDelete, url) }

// OnHead registers a HEAD rule.
func (m *Mock) OnHead(url string) *RuleBuilder { return m.On(http.MethodHead, url) }

// OnOptions registers an OPTIONS rule.
func (m *Mock) OnOptions(url string) *RuleBuilder { return m.On(http.MethodOptions, url) }

// OnPatch registers a PATCH rule.
func (m *Mock) OnPatch(url string) *RuleBuilder { return m.On(http.MethodPatch, url) }

// Named sets the identifier shown for the rule in debug reports.
func (r *RuleBuilder) Named(id string) *RuleBuilder {
	r.b.SetID(id)
	return r
}

func (r *RuleBuilder) responses() *ResponseBuilder {
	return &ResponseBuilder{b: r.b, mock: r.mock}
}
