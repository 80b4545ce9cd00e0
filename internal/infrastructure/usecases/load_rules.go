package usecases

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sophialabs/clientmock/internal/domain/engine"
	"github.com/sophialabs/clientmock/internal/domain/scenario"
	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
	"github.com/sophialabs/clientmock/internal/infrastructure/services"
)

// LoadRulesUseCase loads all scenarios, compiles them and replaces the
// rules of the registry with them.
type LoadRulesUseCase struct {
	repo          scenario.Repository
	compiler      *services.Compiler
	registry      *engine.Registry
	limiter       ports.RateLimiter
	logger        ports.Logger
	defaultEngine string

	mu      sync.Mutex // serializes reloads
	catalog atomic.Pointer[services.Catalog]
}

// NewLoadRulesUseCase creates a new use case. limiter may be nil.
func NewLoadRulesUseCase(
	repo scenario.Repository,
	compiler *services.Compiler,
	registry *engine.Registry,
	limiter ports.RateLimiter,
	logger ports.Logger,
) *LoadRulesUseCase {
	uc := &LoadRulesUseCase{
		repo:     repo,
		compiler: compiler,
		registry: registry,
		limiter:  limiter,
		logger:   logger,
	}
	uc.catalog.Store(services.NewCatalog(nil))
	return uc
}

// SetDefaultEngine sets the global default engine applied to responses without an explicit engine.
func (uc *LoadRulesUseCase) SetDefaultEngine(engine string) {
	uc.defaultEngine = engine
}

// Catalog returns the definitions of the last successful load.
func (uc *LoadRulesUseCase) Catalog() *services.Catalog {
	return uc.catalog.Load()
}

// Execute loads and compiles every scenario, then replaces the rules of the
// registry with the result in one step. Scenarios that fail to compile are
// skipped and logged. Loading errors and duplicate IDs leave the registry
// untouched.
func (uc *LoadRulesUseCase) Execute(ctx context.Context) (*services.Catalog, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	scenarios, err := uc.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}

	uc.logger.Info("loaded scenarios from repository", "count", len(scenarios))

	// Validate ID uniqueness.
	ids := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		if ids[s.ID] {
			return nil, fmt.Errorf("duplicate scenario ID: %q", s.ID)
		}
		ids[s.ID] = true
	}

	defs := make([]*services.Definition, 0, len(scenarios))
	var failed int
	for _, s := range scenarios {
		uc.applyDefaultEngine(s)
		def, err := uc.compiler.Compile(s)
		if err != nil {
			failed++
			uc.logger.Warn("failed to compile scenario", "id", s.ID, "file", s.SourceFile, "error", err)
			continue
		}
		defs = append(defs, def)
		uc.logger.Debug("compiled scenario", "id", def.ID, "priority", def.Priority, "responses", def.Builder.Bundles())
	}

	if failed > 0 {
		uc.logger.Warn("some scenarios failed to compile", "errors", failed)
	}

	catalog := services.NewCatalog(defs)

	uc.registry.Replace(catalog.Builders()...)
	uc.catalog.Store(catalog)
	if uc.limiter != nil {
		uc.limiter.Reset()
	}

	if err := uc.registry.Err(); err != nil {
		uc.logger.Warn("registry rejected a rule", "error", err)
	}

	uc.logger.Info("rules registered", "rules", catalog.Len(), "files", len(catalog.Sources()))

	return catalog, nil
}

// RuleProblem describes a scenario that failed to compile.
type RuleProblem struct {
	ID         string
	SourceFile string
	Err        error
}

// CheckReport is the outcome of a dry-run load.
type CheckReport struct {
	Compiled int
	Problems []RuleProblem
}

// Check loads and compiles every scenario without touching the registry.
// Loading errors and duplicate IDs are returned as errors; compile failures
// are collected in the report.
func (uc *LoadRulesUseCase) Check(ctx context.Context) (CheckReport, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	scenarios, err := uc.repo.LoadAll(ctx)
	if err != nil {
		return CheckReport{}, fmt.Errorf("failed to load scenarios: %w", err)
	}

	var report CheckReport
	ids := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		if ids[s.ID] {
			return CheckReport{}, fmt.Errorf("duplicate scenario ID: %q", s.ID)
		}
		ids[s.ID] = true

		uc.applyDefaultEngine(s)
		if _, err := uc.compiler.Compile(s); err != nil {
			report.Problems = append(report.Problems, RuleProblem{ID: s.ID, SourceFile: s.SourceFile, Err: err})
			continue
		}
		report.Compiled++
	}
	return report, nil
}

func (uc *LoadRulesUseCase) applyDefaultEngine(s *scenario.Scenario) {
	if uc.defaultEngine == "" {
		return
	}
	for i := range s.Responses {
		r := &s.Responses[i]
		if r.Engine == "" && r.Error == "" && (r.Body != "" || r.BodyFile != "") {
			r.Engine = uc.defaultEngine
		}
	}
}
