package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/sophialabs/clientmock/internal/domain/scenario"
)

var _ scenario.Repository = (*YAMLRepository)(nil)

// YAMLRepository loads rule definitions from YAML files in a directory tree.
type YAMLRepository struct {
	rootDir  string
	resolver *IncludeResolver
	exclude  []string
}

// RepositoryOption configures a YAMLRepository.
type RepositoryOption func(*YAMLRepository)

// WithExclude skips files whose slash-separated path relative to the root
// matches any of the doublestar patterns, e.g. "fragments/**".
func WithExclude(patterns ...string) RepositoryOption {
	return func(r *YAMLRepository) {
		r.exclude = append(r.exclude, patterns...)
	}
}

// NewYAMLRepository creates a repository rooted at rootDir.
func NewYAMLRepository(rootDir string, opts ...RepositoryOption) (*YAMLRepository, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	r := &YAMLRepository{
		rootDir:  absRoot,
		resolver: NewIncludeResolver(absRoot),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, p := range r.exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return r, nil
}

// LoadAll walks the root directory in lexical order and returns the parsed
// scenarios in file order.
func (r *YAMLRepository) LoadAll(_ context.Context) ([]*scenario.Scenario, error) {
	var scenarios []*scenario.Scenario

	err := filepath.WalkDir(r.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAMLFile(path) || r.excluded(path) {
			return nil
		}

		loaded, err := r.loadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		scenarios = append(scenarios, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk rules directory: %w", err)
	}

	return scenarios, nil
}

// LoadByID loads a single scenario by its ID.
func (r *YAMLRepository) LoadByID(ctx context.Context, id string) (*scenario.Scenario, error) {
	all, err := r.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, scenario.ErrNotFound
}

func (r *YAMLRepository) excluded(path string) bool {
	rel, err := filepath.Rel(r.rootDir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range r.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (r *YAMLRepository) loadFile(path string) ([]*scenario.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if root.Kind == 0 {
		return nil, nil // empty file
	}

	if err := r.resolver.ResolveIncludes(&root, filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to resolve includes: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("unexpected YAML structure in %s", path)
	}

	content := root.Content[0]
	if content.Kind != yaml.SequenceNode {
		s, err := decodeScenarioNode(content)
		if err != nil {
			return nil, err
		}
		s.SourceFile = path
		s.SourceIndex = -1
		return []*scenario.Scenario{s}, nil
	}

	scenarios := make([]*scenario.Scenario, 0, len(content.Content))
	for i, item := range content.Content {
		s, err := decodeScenarioNode(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		s.SourceFile = path
		s.SourceIndex = i
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func decodeScenarioNode(node *yaml.Node) (*scenario.Scenario, error) {
	var ys yamlScenario
	if err := node.Decode(&ys); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	return toScenario(&ys)
}

func toScenario(ys *yamlScenario) (*scenario.Scenario, error) {
	s := &scenario.Scenario{
		ID:       ys.ID,
		Name:     ys.Name,
		Priority: ys.Priority,
		When: scenario.WhenClause{
			Method:    strings.ToUpper(ys.When.Method),
			URL:       ys.When.URL,
			Host:      ys.When.Host,
			Path:      scenario.ParseMatcher(ys.When.Path),
			Reference: scenario.ParseMatcher(ys.When.Reference),
			Headers:   toMatcherMap(ys.When.Headers),
			Params:    toMatcherMap(ys.When.Params),
		},
		Policy: toPolicy(ys.Policy),
	}

	if ys.When.Body != nil {
		body, err := toBodyClause(ys.When.Body)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", ys.ID, err)
		}
		s.When.Body = body
	}

	if ys.Response != nil {
		s.Responses = append(s.Responses, toResponse(ys.Response))
	}
	for i := range ys.Responses {
		s.Responses = append(s.Responses, toResponse(&ys.Responses[i]))
	}

	return s, nil
}

func toMatcherMap(raw map[string]string) map[string]scenario.StringMatcher {
	if raw == nil {
		return nil
	}
	out := make(map[string]scenario.StringMatcher, len(raw))
	for k, v := range raw {
		out[k] = scenario.ParseMatcher(v)
	}
	return out
}

func toBodyClause(yb *yamlBody) (*scenario.BodyClause, error) {
	if yb == nil {
		return nil, nil
	}

	bc := &scenario.BodyClause{
		ContentType: yb.ContentType,
		Expr:        yb.Expr,
	}

	switch schema := yb.Schema.(type) {
	case nil:
	case string:
		bc.Schema = schema
	default:
		doc, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("invalid inline schema: %w", err)
		}
		bc.Schema = string(doc)
	}

	for _, c := range yb.Conditions {
		bc.Conditions = append(bc.Conditions, scenario.BodyCondition{
			Extractor: c.Extractor,
			Matcher:   scenario.ParseMatcher(c.Matcher),
		})
	}

	for i := range yb.All {
		child, err := toBodyClause(&yb.All[i])
		if err != nil {
			return nil, err
		}
		bc.All = append(bc.All, *child)
	}
	for i := range yb.Any {
		child, err := toBodyClause(&yb.Any[i])
		if err != nil {
			return nil, err
		}
		bc.Any = append(bc.Any, *child)
	}

	not, err := toBodyClause(yb.Not)
	if err != nil {
		return nil, err
	}
	bc.Not = not

	return bc, nil
}

func toResponse(yr *yamlResponse) scenario.Response {
	return scenario.Response{
		Status:      yr.Status,
		Headers:     yr.Headers,
		Body:        yr.Body,
		BodyFile:    yr.BodyFile,
		ContentType: yr.ContentType,
		Charset:     yr.Charset,
		Engine:      yr.Engine,
		JSONFields:  yr.JSONFields,
		Error:       yr.Error,
	}
}

func toPolicy(yp *yamlPolicy) *scenario.Policy {
	if yp == nil {
		return nil
	}

	p := &scenario.Policy{}
	if yp.RateLimit != nil {
		p.RateLimit = &scenario.RateLimit{
			Rate:  yp.RateLimit.Rate,
			Burst: yp.RateLimit.Burst,
			Key:   yp.RateLimit.Key,
		}
	}
	if yp.Latency != nil {
		p.Latency = &scenario.Latency{
			Fixed:  time.Duration(yp.Latency.FixedMs) * time.Millisecond,
			Jitter: time.Duration(yp.Latency.JitterMs) * time.Millisecond,
		}
	}
	return p
}
