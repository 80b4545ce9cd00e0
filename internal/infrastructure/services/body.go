package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/rule"
)

// Body conditions never match a request without a body or with a body that
// does not parse in the expected dialect.

// JSONPath extracts a value from a JSON body with a JSONPath expression and
// tests its string form against m.
func JSONPath(expression string, m match.Matcher) (rule.Condition, error) {
	eval, err := jsonpath.New(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", expression, err)
	}
	return jsonPathCondition{expression: expression, eval: eval, m: m}, nil
}

type jsonPathCondition struct {
	expression string
	eval       gval.Evaluable
	m          match.Matcher
}

func (c jsonPathCondition) Matches(req *rule.Request) bool {
	if !req.HasBody() {
		return false
	}
	var data any
	if err := json.Unmarshal(req.Body, &data); err != nil {
		return false
	}
	v, err := c.eval(context.Background(), data)
	if err != nil {
		return false
	}
	return c.m.Matches(stringify(v))
}

func (c jsonPathCondition) Describe() string {
	return "JSON " + c.expression + " is " + c.m.String()
}

// GJSON is like JSONPath but uses a GJSON path ("user.name", "items.#").
// A missing path does not match.
func GJSON(path string, m match.Matcher) rule.Condition {
	return gjsonCondition{path: path, m: m}
}

type gjsonCondition struct {
	path string
	m    match.Matcher
}

func (c gjsonCondition) Matches(req *rule.Request) bool {
	if !req.HasBody() || !gjson.ValidBytes(req.Body) {
		return false
	}
	res := gjson.GetBytes(req.Body, c.path)
	if !res.Exists() {
		return false
	}
	return c.m.Matches(res.String())
}

func (c gjsonCondition) Describe() string {
	return "JSON field " + c.path + " is " + c.m.String()
}

// XPath selects the first node of an XML body and tests its inner text against m.
func XPath(expression string, m match.Matcher) (rule.Condition, error) {
	compiled, err := xpath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid XPath %q: %w", expression, err)
	}
	return xpathCondition{expression: expression, compiled: compiled, m: m}, nil
}

type xpathCondition struct {
	expression string
	compiled   *xpath.Expr
	m          match.Matcher
}

func (c xpathCondition) Matches(req *rule.Request) bool {
	if !req.HasBody() {
		return false
	}
	doc, err := xmlquery.Parse(bytes.NewReader(req.Body))
	if err != nil {
		return false
	}
	node := xmlquery.QuerySelector(doc, c.compiled)
	if node == nil {
		return false
	}
	return c.m.Matches(node.InnerText())
}

func (c xpathCondition) Describe() string {
	return "XML " + c.expression + " is " + c.m.String()
}

// JSONSchema requires the body to be JSON valid against the schema document.
func JSONSchema(document string) (rule.Condition, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", strings.NewReader(document)); err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	return schemaCondition{schema: schema}, nil
}

type schemaCondition struct {
	schema *jsonschema.Schema
}

func (c schemaCondition) Matches(req *rule.Request) bool {
	if !req.HasBody() {
		return false
	}
	var v any
	if err := json.Unmarshal(req.Body, &v); err != nil {
		return false
	}
	return c.schema.Validate(v) == nil
}

func (c schemaCondition) Describe() string {
	return "body is valid against JSON schema"
}

// requestEnv is the environment of request expressions.
type requestEnv struct {
	Method string              `expr:"method"`
	Path   string              `expr:"path"`
	URL    string              `expr:"url"`
	Body   string              `expr:"body"`
	JSON   any                 `expr:"json"`
	Header func(string) string `expr:"header"`
	Query  func(string) string `expr:"query"`
}

func newRequestEnv(req *rule.Request) requestEnv {
	env := requestEnv{
		Method: req.Method,
		Body:   req.BodyText(),
		Header: func(name string) string { return req.Header.Get(http.CanonicalHeaderKey(name)) },
		Query:  func(string) string { return "" },
	}
	if req.URL != nil {
		env.Path = req.URL.Path
		env.URL = req.URL.String()
		q := req.URL.Query()
		env.Query = q.Get
	}
	if req.HasBody() {
		var data any
		if json.Unmarshal(req.Body, &data) == nil {
			env.JSON = data
		}
	}
	return env
}

// Expr evaluates a boolean Expr program over the request, e.g.
// `method == "POST" && json.amount > 100`. Evaluation errors do not match.
func Expr(source string) (rule.Condition, error) {
	program, err := expr.Compile(source, expr.Env(requestEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", source, err)
	}
	return exprCondition{source: source, program: program}, nil
}

type exprCondition struct {
	source  string
	program *vm.Program
}

func (c exprCondition) Matches(req *rule.Request) bool {
	out, err := expr.Run(c.program, newRequestEnv(req))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func (c exprCondition) Describe() string {
	return "expression " + c.source
}

// AllOf requires every condition. An empty AllOf matches.
func AllOf(conds ...rule.Condition) rule.Condition {
	return groupCondition{conds: conds, all: true}
}

// AnyOf requires at least one condition. An empty AnyOf does not match.
func AnyOf(conds ...rule.Condition) rule.Condition {
	return groupCondition{conds: conds}
}

type groupCondition struct {
	conds []rule.Condition
	all   bool
}

func (c groupCondition) Matches(req *rule.Request) bool {
	for _, cond := range c.conds {
		if cond.Matches(req) != c.all {
			return !c.all
		}
	}
	return c.all
}

func (c groupCondition) Describe() string {
	parts := make([]string, len(c.conds))
	for i, cond := range c.conds {
		parts[i] = cond.Describe()
	}
	sep := " or "
	if c.all {
		sep = " and "
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Not inverts cond.
func Not(cond rule.Condition) rule.Condition {
	return notCondition{cond: cond}
}

type notCondition struct {
	cond rule.Condition
}

func (c notCondition) Matches(req *rule.Request) bool { return !c.cond.Matches(req) }

func (c notCondition) Describe() string { return "not " + c.cond.Describe() }

// stringify renders an extracted JSON value for matching. Strings are used
// as is; everything else is re-encoded as JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
