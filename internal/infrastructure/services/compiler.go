package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/scenario"
	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
)

// BuilderFactory creates rule builders for a method and URL pattern.
// *engine.Registry is one, joining its default host into relative patterns.
type BuilderFactory interface {
	NewBuilder(method, pattern string) *rule.Builder
}

type plainFactory struct{}

func (plainFactory) NewBuilder(method, pattern string) *rule.Builder {
	return rule.NewBuilder(method).AddURLPattern(pattern)
}

// Definition is a compiled scenario, ready to be registered.
type Definition struct {
	ID         string
	Name       string
	Priority   int
	SourceFile string
	Builder    *rule.Builder
	Policy     *scenario.Policy
}

// Compiler transforms scenarios into rule builders.
type Compiler struct {
	rootDir   string
	templates ports.TemplateCompiler // nil means no template support
	factory   BuilderFactory
	now       func() time.Time
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithBuilderFactory sets the factory rule builders come from.
func WithBuilderFactory(f BuilderFactory) CompilerOption {
	return func(c *Compiler) {
		if f != nil {
			c.factory = f
		}
	}
}

// WithNow sets the time source exposed to response templates.
func WithNow(now func() time.Time) CompilerOption {
	return func(c *Compiler) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCompiler creates a new Compiler bound to the given root directory for body_file resolution.
// templates may be nil, in which case scenarios with an engine field will fail to compile.
func NewCompiler(rootDir string, templates ports.TemplateCompiler, opts ...CompilerOption) (*Compiler, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	c := &Compiler{
		rootDir:   absRoot,
		templates: templates,
		factory:   plainFactory{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compile turns a Scenario into a Definition. The builder's registration
// error, if any, is returned as the compile error.
func (c *Compiler) Compile(s *scenario.Scenario) (*Definition, error) {
	b := c.factory.NewBuilder(s.When.Method, s.When.URL).SetID(s.ID)
	if err := c.compileWhen(b, &s.When); err != nil {
		return nil, fmt.Errorf("failed to compile scenario %q: %w", s.ID, err)
	}
	if err := b.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile scenario %q: %w", s.ID, err)
	}

	for i := range s.Responses {
		bundle, err := c.compileResponse(&s.Responses[i])
		if err != nil {
			return nil, fmt.Errorf("failed to compile response %d for %q: %w", i+1, s.ID, err)
		}
		b.AddActionBundle(bundle...)
	}

	return &Definition{
		ID:         s.ID,
		Name:       s.Name,
		Priority:   s.Priority,
		SourceFile: s.SourceFile,
		Builder:    b,
		Policy:     s.Policy,
	}, nil
}

func (c *Compiler) compileWhen(b *rule.Builder, w *scenario.WhenClause) error {
	if w.Host != "" {
		b.AddHostCondition(w.Host)
	}
	if !w.Path.IsZero() {
		m, err := CompileStringMatcher(w.Path)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		b.AddPathCondition(m)
	}
	if !w.Reference.IsZero() {
		m, err := CompileStringMatcher(w.Reference)
		if err != nil {
			return fmt.Errorf("reference: %w", err)
		}
		b.AddReferenceCondition(m)
	}

	// Sorted for deterministic debug output.
	for _, name := range sortedKeys(w.Headers) {
		m, err := CompileStringMatcher(w.Headers[name])
		if err != nil {
			return fmt.Errorf("header %q: %w", name, err)
		}
		b.AddCondition(rule.Header(name, m))
	}
	for _, name := range sortedKeys(w.Params) {
		m, err := CompileStringMatcher(w.Params[name])
		if err != nil {
			return fmt.Errorf("param %q: %w", name, err)
		}
		b.AddParameterCondition(name, match.Each(m))
	}

	if !w.Body.IsZero() {
		cond, err := compileBody(w.Body, w.Body.ContentType)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		b.AddCondition(cond)
	}
	return nil
}

// compileBody folds a body clause into one condition. Nested clauses inherit
// the dialect of their parent unless they set their own.
func compileBody(bc *scenario.BodyClause, dialect string) (rule.Condition, error) {
	if bc.ContentType != "" {
		dialect = bc.ContentType
	}

	var conds []rule.Condition
	for _, cond := range bc.Conditions {
		cc, err := compileBodyCondition(cond, dialect)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cc)
	}

	if bc.Schema != "" {
		cc, err := JSONSchema(bc.Schema)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cc)
	}
	if bc.Expr != "" {
		cc, err := Expr(bc.Expr)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cc)
	}

	if len(bc.All) > 0 {
		children, err := compileBodies(bc.All, dialect)
		if err != nil {
			return nil, err
		}
		conds = append(conds, AllOf(children...))
	}
	if len(bc.Any) > 0 {
		children, err := compileBodies(bc.Any, dialect)
		if err != nil {
			return nil, err
		}
		conds = append(conds, AnyOf(children...))
	}
	if bc.Not != nil {
		inner, err := compileBody(bc.Not, dialect)
		if err != nil {
			return nil, err
		}
		conds = append(conds, Not(inner))
	}

	if len(conds) == 1 {
		return conds[0], nil
	}
	return AllOf(conds...), nil
}

func compileBodies(clauses []scenario.BodyClause, dialect string) ([]rule.Condition, error) {
	out := make([]rule.Condition, 0, len(clauses))
	for i := range clauses {
		cond, err := compileBody(&clauses[i], dialect)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func compileBodyCondition(cond scenario.BodyCondition, dialect string) (rule.Condition, error) {
	m, err := CompileStringMatcher(cond.Matcher)
	if err != nil {
		return nil, fmt.Errorf("body condition %q: %w", cond.Extractor, err)
	}

	switch strings.ToLower(dialect) {
	case "json":
		return JSONPath(cond.Extractor, m)
	case "gjson":
		return GJSON(cond.Extractor, m), nil
	case "xml":
		return XPath(cond.Extractor, m)
	case "":
		// No content type: match against the raw body.
		return rule.Body(m), nil
	default:
		return nil, fmt.Errorf("unknown body content type %q", dialect)
	}
}

func (c *Compiler) compileResponse(r *scenario.Response) (rule.Bundle, error) {
	if r.Error != "" {
		return rule.Bundle{rule.Fail(errors.New(r.Error))}, nil
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	bundle := rule.Bundle{rule.SetStatus(status)}
	for _, name := range sortedKeys(r.Headers) {
		bundle = append(bundle, rule.SetHeader(name, r.Headers[name]))
	}

	// Resolve body content (inline or from file).
	source := r.Body
	if r.BodyFile != "" {
		resolved, err := c.resolveBodyFilePath(r.BodyFile)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to read body_file %q: %w", r.BodyFile, err)
		}
		source = string(data)
	}

	if r.Engine != "" {
		if c.templates == nil {
			return nil, fmt.Errorf("template engine %q requested but no registry configured", r.Engine)
		}
		name := r.BodyFile
		if name == "" {
			name = "inline"
		}
		renderer, err := c.templates.Compile(r.Engine, name, source)
		if err != nil {
			return nil, fmt.Errorf("failed to compile template (engine=%s): %w", r.Engine, err)
		}
		bundle = append(bundle, rule.RenderBody(renderer, c.now))
	} else if source != "" {
		bundle = append(bundle, rule.SetBody([]byte(source)))
	}

	for _, path := range sortedKeys(r.JSONFields) {
		bundle = append(bundle, SetJSONField(path, r.JSONFields[path]))
	}

	if !hasHeader(r.Headers, "Content-Type") {
		bundle = append(bundle, contentTypeAction(r))
	}

	// Encoding must follow sniffing and JSON fields, which work on UTF-8.
	if r.Charset != "" {
		if _, err := EncodeCharset(nil, r.Charset); err != nil {
			return nil, err
		}
		bundle = append(bundle, encodeBody(r.Charset))
	}
	return bundle, nil
}

// contentTypeAction infers the Content-Type from the produced body when the
// response declares a body, a body file or a content type.
func contentTypeAction(r *scenario.Response) rule.Action {
	declared := r.ContentType != "" || r.BodyFile != "" || r.Body != "" || len(r.JSONFields) > 0
	return rule.ActionFunc(func(b *rule.ResponseBuilder) error {
		if !declared {
			return nil
		}
		ct := r.ContentType
		if ct == "" && r.BodyFile == "" && len(r.JSONFields) > 0 && r.Body == "" {
			ct = "application/json"
		}
		ct = InferContentType(ct, r.BodyFile, b.Body)
		b.Header.Set("Content-Type", WithCharset(ct, r.Charset))
		return nil
	})
}

func encodeBody(charset string) rule.Action {
	return rule.ActionFunc(func(b *rule.ResponseBuilder) error {
		out, err := EncodeCharset(b.Body, charset)
		if err != nil {
			return err
		}
		b.Body = out
		return nil
	})
}

// resolveBodyFilePath resolves and validates body_file paths to prevent directory traversal.
func (c *Compiler) resolveBodyFilePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed in body_file: %s", path)
	}

	resolved := filepath.Join(c.rootDir, path)

	// Evaluate symlinks and verify the path stays within rootDir.
	realPath, err := filepath.EvalSymlinks(resolved)
	if err != nil {
		realPath = filepath.Clean(resolved)
	}
	absRoot, err := filepath.EvalSymlinks(c.rootDir)
	if err != nil {
		absRoot = c.rootDir
	}

	rel, err := filepath.Rel(absRoot, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("body_file path %q escapes root directory", path)
	}
	return resolved, nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
