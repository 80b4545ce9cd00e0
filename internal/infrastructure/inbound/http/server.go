package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sophialabs/clientmock/internal/domain/engine"
	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/trace"
	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
	"github.com/sophialabs/clientmock/internal/infrastructure/usecases"
)

const maxBodySize = 10 << 20 // 10 MB

// Server is the HTTP front end of the mock: every request outside /__admin
// is dispatched to the rule registry.
type Server struct {
	router      *chi.Mux
	reloadMu    sync.Mutex
	handleReqUC *usecases.HandleRequestUseCase
	loadUC      *usecases.LoadRulesUseCase
	registry    *engine.Registry
	traces      ports.TraceStore
	logger      ports.Logger
}

// NewServer creates a new Server.
func NewServer(
	handleReqUC *usecases.HandleRequestUseCase,
	loadUC *usecases.LoadRulesUseCase,
	registry *engine.Registry,
	traces ports.TraceStore,
	logger ports.Logger,
) *Server {
	s := &Server{
		handleReqUC: handleReqUC,
		loadUC:      loadUC,
		registry:    registry,
		traces:      traces,
		logger:      logger,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/__admin", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/rules", s.handleListRules)
		r.Get("/trace", s.handleGetTrace)
		r.Get("/requests", s.handleListRequests)
		r.Post("/verify", s.handleVerify)
		r.Post("/reset", s.handleReset)
		r.Post("/reload", s.handleReload)
		r.Post("/debug", s.handleDebug)
	})

	r.HandleFunc("/*", s.mockHandler)
	r.NotFound(s.mockHandler)

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Reload reloads rule definitions, replacing every rule and clearing the
// request log and trace. Serialized via mutex.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	catalog, err := s.loadUC.Execute(ctx)
	if err != nil {
		return err
	}
	if s.traces != nil {
		s.traces.Reset()
	}
	s.logger.Info("rules reloaded", "rules", catalog.Len())
	return nil
}

func (s *Server) mockHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("request received", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery, "remote", r.RemoteAddr)

	req, err := toRuleRequest(r)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	result := s.handleReqUC.Execute(r.Context(), req)

	switch {
	case result.NoMatch != nil:
		s.logger.Info("request unmatched", "method", r.Method, "url", result.NoMatch.URL)
		writeJSONStatus(w, http.StatusNotFound, buildDebugResponse(result.NoMatch, s.registry.Explain(req)))

	case result.RateLimited:
		s.logger.Info("request rate-limited", "method", r.Method, "path", r.URL.Path, "rule", result.MatchedID)
		w.Header().Set("Retry-After", "1")
		writeJSONStatus(w, http.StatusTooManyRequests, map[string]string{
			"error":   "rate_limited",
			"rule":    result.MatchedID,
			"message": "Too many requests",
		})

	case result.Err != nil:
		if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			s.logger.Debug("request cancelled", "method", r.Method, "path", r.URL.Path, "error", result.Err)
			return
		}
		s.logger.Info("request failed with configured error", "method", r.Method, "path", r.URL.Path, "rule", result.MatchedID, "error", result.Err)
		writeJSONStatus(w, http.StatusBadGateway, map[string]string{
			"error":   "configured_error",
			"rule":    result.MatchedID,
			"message": result.Err.Error(),
		})

	default:
		resp := result.Response
		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.Status)
		if _, err := w.Write(resp.Body); err != nil {
			s.logger.Debug("failed to write response body", "error", err)
		}
		s.logger.Info("request matched", "method", r.Method, "path", r.URL.Path, "rule", result.MatchedID, "status", resp.Status)
	}
}

// toRuleRequest converts r into an absolute-URL request. An empty body is
// treated as absent.
func toRuleRequest(r *http.Request) (*rule.Request, error) {
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		body = nil
	}

	u := *r.URL
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if u.Host == "" {
		u.Host = r.Host
	}

	return &rule.Request{
		Method: r.Method,
		URL:    &u,
		Header: r.Header.Clone(),
		Body:   body,
	}, nil
}

func buildDebugResponse(nmr *engine.NoMatchingRuleError, entry trace.Entry) map[string]any {
	rules := make([]map[string]any, 0, len(entry.Rules))
	for _, rr := range entry.Rules {
		failed := make([]string, 0)
		for _, c := range rr.Failed() {
			failed = append(failed, c.Description)
		}
		rules = append(rules, map[string]any{
			"index":  rr.Index,
			"id":     rr.ID,
			"failed": failed,
		})
	}
	return map[string]any{
		"error":   "no_match",
		"method":  nmr.Method,
		"url":     nmr.URL,
		"message": "No rule matched the request",
		"rules":   rules,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"rules":  s.loadUC.Catalog().Len(),
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	pending := make(map[string]int)
	for _, rl := range s.registry.Rules() {
		pending[rl.ID()] = rl.Pending()
	}

	defs := s.loadUC.Catalog().Definitions()
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		item := map[string]any{
			"id":          d.ID,
			"name":        d.Name,
			"priority":    d.Priority,
			"source_file": d.SourceFile,
			"responses":   d.Builder.Bundles(),
			"pending":     pending[d.ID],
		}
		if d.Policy != nil {
			item["rate_limited"] = d.Policy.RateLimit != nil
			item["latency"] = d.Policy.Latency != nil
		}
		out = append(out, item)
	}
	writeJSON(w, out)
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	n := 10
	if lastParam := r.URL.Query().Get("last"); lastParam != "" {
		if parsed, err := strconv.Atoi(lastParam); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries := s.traces.Last(n)
	if entries == nil {
		entries = []trace.Entry{}
	}
	writeJSON(w, entries)
}

func (s *Server) handleListRequests(w http.ResponseWriter, _ *http.Request) {
	reqs := s.registry.Requests()
	out := make([]map[string]any, 0, len(reqs))
	for _, req := range reqs {
		item := map[string]any{
			"method":  req.Method,
			"url":     urlString(req.URL),
			"headers": req.Header,
		}
		if req.HasBody() {
			item["body"] = req.BodyText()
		}
		out = append(out, item)
	}
	writeJSON(w, out)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		s.logger.Error("reset failed", "error", err)
		writeJSONStatus(w, http.StatusInternalServerError, map[string]string{
			"error":   "reset_failed",
			"message": "rule reset failed, check server logs",
		})
		return
	}
	writeJSON(w, map[string]string{
		"status":  "ok",
		"message": "rules reset",
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		s.logger.Error("reload failed", "error", err)
		writeJSONStatus(w, http.StatusInternalServerError, map[string]string{
			"error":   "reload_failed",
			"message": "rule reload failed, check server logs",
		})
		return
	}
	writeJSON(w, map[string]string{
		"status":  "ok",
		"message": "rules reloaded",
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&payload); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if payload.Enabled {
		s.registry.DebugOn()
	} else {
		s.registry.DebugOff()
	}
	writeJSON(w, map[string]bool{"debug": s.registry.Debugging()})
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
