package wiring

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sophialabs/clientmock/internal/domain/engine"
	"github.com/sophialabs/clientmock/internal/domain/trace"
	inboundhttp "github.com/sophialabs/clientmock/internal/infrastructure/inbound/http"
	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/logging"
	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/ratelimit"
	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/template"
	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
	"github.com/sophialabs/clientmock/internal/infrastructure/services"
	"github.com/sophialabs/clientmock/internal/infrastructure/usecases"
)

// Params holds the subset of configuration needed to construct infrastructure components.
type Params struct {
	RootDir        string
	Exclude        []string // doublestar patterns relative to RootDir
	TraceSize      int
	RateLimiterTTL time.Duration
	Logger         ports.Logger
	DefaultEngine  string // "" = static, "expr", "jinja2"
	DefaultHost    string // joined into "/"-relative rule URLs
	Debug          bool   // trace matched requests too
}

// Container owns the construction and lifecycle of all infrastructure components.
type Container struct {
	logger           ports.Logger
	server           *inboundhttp.Server
	registry         *engine.Registry
	loadUC           *usecases.LoadRulesUseCase
	rateLimiterStore *ratelimit.TokenBucketStore
	traceBuf         *trace.RingBuffer
	closeOnce        sync.Once
}

// New constructs all infrastructure components. Fallible operations (repository,
// compiler) run before goroutine-starting operations (rate limiter store) to
// avoid goroutine leaks on early failure.
func New(p Params) (*Container, error) {
	if _, err := os.Stat(p.RootDir); err != nil {
		return nil, fmt.Errorf("failed to access root directory: %w", err)
	}

	repo, err := filesystem.NewYAMLRepository(p.RootDir, filesystem.WithExclude(p.Exclude...))
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	clk := clock.New()
	traceBuf := trace.NewRingBuffer(p.TraceSize)
	registry := engine.New(
		engine.WithDebugger(trace.Tee(traceBuf, logging.Debugger(p.Logger))),
		engine.WithDefaultHost(p.DefaultHost),
		engine.WithClock(clk.Now),
	)
	if p.Debug {
		registry.DebugOn()
	}

	compiler, err := services.NewCompiler(p.RootDir, template.NewRegistry(),
		services.WithBuilderFactory(registry),
		services.WithNow(clock.NowFunc(clk)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler: %w", err)
	}

	// Start background goroutine only after all fallible ops succeed.
	rateLimiterStore := ratelimit.NewTokenBucketStore(p.RateLimiterTTL)

	loadUC := usecases.NewLoadRulesUseCase(repo, compiler, registry, rateLimiterStore, p.Logger)
	if p.DefaultEngine != "" {
		loadUC.SetDefaultEngine(p.DefaultEngine)
	}
	handleReqUC := usecases.NewHandleRequestUseCase(registry, loadUC, clk, rateLimiterStore, p.Logger)

	server := inboundhttp.NewServer(handleReqUC, loadUC, registry, traceBuf, p.Logger)

	return &Container{
		logger:           p.Logger,
		server:           server,
		registry:         registry,
		loadUC:           loadUC,
		rateLimiterStore: rateLimiterStore,
		traceBuf:         traceBuf,
	}, nil
}

// Close releases resources held by the container. It is idempotent.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		c.rateLimiterStore.Stop()
	})
}

// Logger returns the logger passed at construction time.
func (c *Container) Logger() ports.Logger {
	return c.logger
}

// Server returns the HTTP mock server.
func (c *Container) Server() *inboundhttp.Server {
	return c.server
}

// Registry returns the rule registry requests are dispatched to.
func (c *Container) Registry() *engine.Registry {
	return c.registry
}

// LoadRulesUseCase returns the use case for loading and registering rules.
func (c *Container) LoadRulesUseCase() *usecases.LoadRulesUseCase {
	return c.loadUC
}

// RateLimiterStore returns the token bucket store for rate limiting.
func (c *Container) RateLimiterStore() *ratelimit.TokenBucketStore {
	return c.rateLimiterStore
}

// TraceBuf returns the trace ring buffer.
func (c *Container) TraceBuf() *trace.RingBuffer {
	return c.traceBuf
}
