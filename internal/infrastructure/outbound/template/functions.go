package template

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/sophialabs/clientmock/internal/domain/rule"
)

// helpers is the function set shared by both engines. Each engine exposes it
// under its own calling convention.
type helpers struct {
	ctx rule.RenderContext
}

func (h helpers) queryParam(name string) string {
	return h.ctx.QueryParams[name]
}

// header looks name up case-insensitively.
func (h helpers) header(name string) string {
	for k, v := range h.ctx.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// pathSegment returns the i-th segment of the request path, counting from 1.
func (h helpers) pathSegment(i int) string {
	segments := strings.Split(strings.Trim(h.ctx.Path, "/"), "/")
	if i < 1 || i > len(segments) {
		return ""
	}
	return segments[i-1]
}

func (h helpers) nowFormat(layout string) string {
	t, err := time.Parse(time.RFC3339, h.ctx.Now)
	if err != nil {
		return h.ctx.Now
	}
	return t.Format(layout)
}

func (h helpers) jsonPath(expression string) string {
	var data any
	if err := json.Unmarshal(h.ctx.Body, &data); err != nil {
		return ""
	}
	result, err := jsonpath.Get(expression, data)
	if err != nil {
		return ""
	}
	if s, ok := result.(string); ok {
		return s
	}
	return toJSONString(result)
}

// gjsonPath evaluates a GJSON path against the body. Missing paths yield "".
func (h helpers) gjsonPath(path string) string {
	if !gjson.ValidBytes(h.ctx.Body) {
		return ""
	}
	return gjson.GetBytes(h.ctx.Body, path).String()
}

func randomInt(min, max int) int {
	if min >= max {
		return min
	}
	return min + rand.IntN(max-min+1)
}

func seqInts(start, end int) []int {
	if end < start {
		return nil
	}
	s := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		s = append(s, i)
	}
	return s
}

func toJSONString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func newUUID() string {
	return uuid.NewString()
}
