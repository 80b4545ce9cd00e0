package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sophialabs/clientmock/internal/domain/engine"
	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/scenario"
	"github.com/sophialabs/clientmock/internal/infrastructure/services"
)

// verifyRequest describes the requests to count. Matchers use the notation
// of rule files. Without a bound the request must have been seen exactly once.
type verifyRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	Body    string            `json:"body"`
	Times   *int              `json:"times"`
	AtLeast *int              `json:"at_least"`
	AtMost  *int              `json:"at_most"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var payload verifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&payload); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	b, err := s.verificationBuilder(&payload)
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	v := s.registry.Verify(b)
	if err := v.Err(); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if err := checkBounds(v, &payload); err != nil {
		var mismatch *engine.VerificationMismatchError
		if !errors.As(err, &mismatch) {
			writeJSONStatus(w, http.StatusBadRequest, map[string]string{
				"error":   "invalid_request",
				"message": err.Error(),
			})
			return
		}
		writeJSONStatus(w, http.StatusConflict, map[string]any{
			"error":    "verification_failed",
			"rule":     mismatch.Rule,
			"expected": mismatch.Expected,
			"actual":   mismatch.Actual,
			"message":  err.Error(),
		})
		return
	}

	writeJSON(w, map[string]any{
		"status": "ok",
		"rule":   v.Rule,
		"actual": v.Actual,
	})
}

func (s *Server) verificationBuilder(p *verifyRequest) (*rule.Builder, error) {
	b := s.registry.Expect(p.Method, p.URL)
	for name, raw := range p.Headers {
		m, err := services.CompileStringMatcher(scenario.ParseMatcher(raw))
		if err != nil {
			return nil, fmt.Errorf("header %q: %w", name, err)
		}
		b.AddCondition(rule.Header(name, m))
	}
	for name, raw := range p.Params {
		m, err := services.CompileStringMatcher(scenario.ParseMatcher(raw))
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", name, err)
		}
		b.AddParameterCondition(name, match.Each(m))
	}
	if p.Body != "" {
		m, err := services.CompileStringMatcher(scenario.ParseMatcher(p.Body))
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		b.AddCondition(rule.Body(m))
	}
	return b, nil
}

func checkBounds(v engine.Verification, p *verifyRequest) error {
	if p.Times == nil && p.AtLeast == nil && p.AtMost == nil {
		return v.Exactly(1)
	}
	if p.Times != nil {
		if err := v.Exactly(*p.Times); err != nil {
			return err
		}
	}
	if p.AtLeast != nil {
		if err := v.AtLeast(*p.AtLeast); err != nil {
			return err
		}
	}
	if p.AtMost != nil {
		if err := v.AtMost(*p.AtMost); err != nil {
			return err
		}
	}
	return nil
}
