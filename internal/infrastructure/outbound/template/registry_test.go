package template

import (
	"strings"
	"testing"

	"github.com/sophialabs/clientmock/internal/domain/rule"
)

func TestRegistry_KnownEngines(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		engine string
		source string
	}{
		{"expr", `Hello ${pathSegment(2)}`},
		{"jinja2", `Hello {{ pathSegment(2) }}`},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			renderer, err := r.Compile(tt.engine, "test", tt.source)
			if err != nil {
				t.Fatalf("Compile failed for engine %q: %v", tt.engine, err)
			}

			result, err := renderer.Render(rule.RenderContext{Path: "/greet/World"})
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if string(result) != "Hello World" {
				t.Errorf("expected 'Hello World', got %q", result)
			}
		})
	}
}

func TestRegistry_UnknownEngine(t *testing.T) {
	r := NewRegistry()
	_, err := r.Compile("unknown", "test", "body")
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}
	if !strings.Contains(err.Error(), "expr") || !strings.Contains(err.Error(), "jinja2") {
		t.Errorf("expected supported engines in error, got %v", err)
	}
}

type upperCompiler struct{}

func (upperCompiler) Compile(_, source string) (rule.BodyRenderer, error) {
	return &staticRenderer{body: []byte(strings.ToUpper(source))}, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("upper", upperCompiler{})

	renderer, err := r.Compile("upper", "test", "shout")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	result, _ := renderer.Render(rule.RenderContext{})
	if string(result) != "SHOUT" {
		t.Errorf("expected 'SHOUT', got %q", result)
	}
	if got := r.Engines(); len(got) != 3 || got[2] != "upper" {
		t.Errorf("unexpected engines: %v", got)
	}
}
