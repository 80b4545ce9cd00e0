package template

import (
	"fmt"

	"github.com/flosch/pongo2/v6"

	"github.com/sophialabs/clientmock/internal/domain/rule"
)

// Jinja2Compiler compiles body templates using Pongo2 (Django/Jinja2-style).
type Jinja2Compiler struct{}

// Compile parses the source as a Pongo2 template. Output is not HTML-escaped:
// bodies are usually JSON or XML.
func (c *Jinja2Compiler) Compile(name, source string) (rule.BodyRenderer, error) {
	tpl, err := pongo2.FromString("{% autoescape off %}" + source + "{% endautoescape %}")
	if err != nil {
		return nil, fmt.Errorf("failed to compile jinja2 template %q: %w", name, err)
	}
	return &jinja2Renderer{tpl: tpl}, nil
}

type jinja2Renderer struct {
	tpl *pongo2.Template
}

func (r *jinja2Renderer) Render(ctx rule.RenderContext) ([]byte, error) {
	h := helpers{ctx: ctx}
	result, err := r.tpl.Execute(pongo2.Context{
		"method":      ctx.Method,
		"path":        ctx.Path,
		"url":         ctx.URL,
		"headers":     ctx.Headers,
		"queryParams": ctx.QueryParams,
		"body":        string(ctx.Body),
		"now":         ctx.Now,

		"queryParam":  h.queryParam,
		"header":      h.header,
		"pathSegment": h.pathSegment,
		"nowFormat":   h.nowFormat,
		"jsonPath":    h.jsonPath,
		"gjson":       h.gjsonPath,
		"uuid":        newUUID,
		"randomInt":   randomInt,
		"seq":         seqInts,
		"toJSON":      toJSONString,
	})
	if err != nil {
		return nil, fmt.Errorf("jinja2 template render failed: %w", err)
	}
	return []byte(result), nil
}
