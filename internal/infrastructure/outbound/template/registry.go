// Package template compiles dynamic response bodies. A compiled template is
// a rule.BodyRenderer evaluated once per produced response.
package template

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sophialabs/clientmock/internal/domain/rule"
)

// EngineCompiler compiles a template source string into a BodyRenderer.
type EngineCompiler interface {
	Compile(name, source string) (rule.BodyRenderer, error)
}

// Registry maps engine names to their compilers.
type Registry struct {
	engines map[string]EngineCompiler
}

// NewRegistry creates a registry with the built-in engines (expr, jinja2).
func NewRegistry() *Registry {
	return &Registry{
		engines: map[string]EngineCompiler{
			"expr":   &ExprCompiler{},
			"jinja2": &Jinja2Compiler{},
		},
	}
}

// Register adds or replaces an engine.
func (r *Registry) Register(engine string, ec EngineCompiler) {
	r.engines[engine] = ec
}

// Engines returns the registered engine names, sorted.
func (r *Registry) Engines() []string {
	return slices.Sorted(maps.Keys(r.engines))
}

// Compile resolves the engine by name and compiles the source.
func (r *Registry) Compile(engine, name, source string) (rule.BodyRenderer, error) {
	ec, ok := r.engines[engine]
	if !ok {
		return nil, fmt.Errorf("unknown template engine: %q (supported: %v)", engine, r.Engines())
	}
	return ec.Compile(name, source)
}
