package template

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/sophialabs/clientmock/internal/domain/rule"
)

// ExprCompiler compiles body templates using the Expr language with ${ } interpolation.
type ExprCompiler struct{}

// Compile splits the source on ${ } delimiters and compiles each expression.
func (c *ExprCompiler) Compile(name, source string) (rule.BodyRenderer, error) {
	segments, err := parseExprSegments(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expr template %q: %w", name, err)
	}

	for _, seg := range segments {
		if seg.program != nil {
			return &exprRenderer{segments: segments}, nil
		}
	}
	return &staticRenderer{body: []byte(source)}, nil
}

type exprSegment struct {
	static  string
	program *vm.Program
}

func parseExprSegments(source string) ([]exprSegment, error) {
	var segments []exprSegment
	remaining := source
	offset := 0

	for {
		idx := strings.Index(remaining, "${")
		if idx < 0 {
			if remaining != "" {
				segments = append(segments, exprSegment{static: remaining})
			}
			return segments, nil
		}
		if idx > 0 {
			segments = append(segments, exprSegment{static: remaining[:idx]})
		}

		rest := remaining[idx+2:]
		end := findClosingBrace(rest)
		if end < 0 {
			return nil, fmt.Errorf("unclosed ${ at position %d", offset+idx)
		}

		expression := rest[:end]
		program, err := expr.Compile(expression, expr.Env(exprEnv{}))
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}
		segments = append(segments, exprSegment{program: program})

		consumed := idx + 2 + end + 1
		offset += consumed
		remaining = remaining[consumed:]
	}
}

// findClosingBrace returns the index of the } closing an expression, skipping
// nested braces and quoted strings.
func findClosingBrace(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// exprEnv defines the environment available to Expr expressions.
type exprEnv struct {
	Method      string               `expr:"method"`
	Path        string               `expr:"path"`
	URL         string               `expr:"url"`
	QueryParam  func(string) string  `expr:"queryParam"`
	Header      func(string) string  `expr:"header"`
	PathSegment func(int) string     `expr:"pathSegment"`
	Body        func() string        `expr:"body"`
	Now         func() string        `expr:"now"`
	NowFormat   func(string) string  `expr:"nowFormat"`
	UUID        func() string        `expr:"uuid"`
	RandomInt   func(int, int) int   `expr:"randomInt"`
	Seq         func(int, int) []int `expr:"seq"`
	ToJSON      func(any) string     `expr:"toJSON"`
	JSONPath    func(string) string  `expr:"jsonPath"`
	GJSON       func(string) string  `expr:"gjson"`
}

func newExprEnv(ctx rule.RenderContext) exprEnv {
	h := helpers{ctx: ctx}
	return exprEnv{
		Method:      ctx.Method,
		Path:        ctx.Path,
		URL:         ctx.URL,
		QueryParam:  h.queryParam,
		Header:      h.header,
		PathSegment: h.pathSegment,
		Body:        func() string { return string(ctx.Body) },
		Now:         func() string { return ctx.Now },
		NowFormat:   h.nowFormat,
		UUID:        newUUID,
		RandomInt:   randomInt,
		Seq:         seqInts,
		ToJSON:      toJSONString,
		JSONPath:    h.jsonPath,
		GJSON:       h.gjsonPath,
	}
}

type exprRenderer struct {
	segments []exprSegment
}

func (r *exprRenderer) Render(ctx rule.RenderContext) ([]byte, error) {
	env := newExprEnv(ctx)

	var buf strings.Builder
	for _, seg := range r.segments {
		if seg.program == nil {
			buf.WriteString(seg.static)
			continue
		}
		result, err := expr.Run(seg.program, env)
		if err != nil {
			return nil, fmt.Errorf("expression evaluation failed: %w", err)
		}
		fmt.Fprintf(&buf, "%v", result)
	}
	return []byte(buf.String()), nil
}

// staticRenderer returns a fixed body.
type staticRenderer struct {
	body []byte
}

func (r *staticRenderer) Render(rule.RenderContext) ([]byte, error) {
	return r.body, nil
}
