package usecases

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sophialabs/clientmock/internal/domain/engine"
	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/scenario"
	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
	"github.com/sophialabs/clientmock/internal/infrastructure/services"
)

// CatalogSource provides the definitions currently registered.
type CatalogSource interface {
	Catalog() *services.Catalog
}

// HandleRequestResult is the outcome of processing a mock request.
type HandleRequestResult struct {
	Matched     bool
	MatchedID   string
	Response    *rule.Response
	RateLimited bool
	// NoMatch is set when no rule accepted the request.
	NoMatch *engine.NoMatchingRuleError
	// Err is the configured error of the matched response, or the context
	// error if the request was cancelled during simulated latency.
	Err error
}

// HandleRequestUseCase processes incoming mock requests.
type HandleRequestUseCase struct {
	registry    *engine.Registry
	catalogs    CatalogSource
	clock       ports.Clock
	rateLimiter ports.RateLimiter
	logger      ports.Logger
}

// NewHandleRequestUseCase creates a new use case.
func NewHandleRequestUseCase(
	registry *engine.Registry,
	catalogs CatalogSource,
	clock ports.Clock,
	rateLimiter ports.RateLimiter,
	logger ports.Logger,
) *HandleRequestUseCase {
	return &HandleRequestUseCase{
		registry:    registry,
		catalogs:    catalogs,
		clock:       clock,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// Execute resolves req against the registry, applies the matched rule's
// policy and produces its next response. A rate-limited request does not
// consume a response.
func (uc *HandleRequestUseCase) Execute(ctx context.Context, req *rule.Request) HandleRequestResult {
	var result HandleRequestResult

	matched, err := uc.registry.Resolve(req)
	if err != nil {
		var nmr *engine.NoMatchingRuleError
		if errors.As(err, &nmr) {
			result.NoMatch = nmr
		} else {
			result.Err = err
		}
		uc.logger.Debug("no match found", "request", req.String())
		return result
	}

	result.Matched = true
	result.MatchedID = matched.ID()

	var policy *scenario.Policy
	if uc.catalogs != nil {
		policy = uc.catalogs.Catalog().Policy(matched.ID())
	}

	// Rate limiting check.
	if policy != nil && policy.RateLimit != nil {
		rl := policy.RateLimit
		key := bucketKey(matched.ID(), rl.Key, req)
		if !uc.rateLimiter.Allow(ctx, key, rl.Rate, rl.Burst) {
			uc.logger.Debug("rate limited", "rule", matched.ID(), "key", key)
			result.RateLimited = true
			return result
		}
	}

	// Latency simulation (respects context cancellation).
	if policy != nil && policy.Latency != nil {
		delay := policy.Latency.Fixed
		if j := policy.Latency.Jitter; j > 0 {
			delay += time.Duration(rand.Int64N(int64(j)))
		}
		if delay > 0 {
			if err := uc.clock.SleepContext(ctx, delay); err != nil {
				uc.logger.Debug("latency sleep cancelled", "rule", matched.ID(), "error", err)
				result.Err = err
				return result
			}
		}
	}

	resp, err := matched.Produce(req)
	if err != nil {
		uc.logger.Debug("rule produced configured error", "rule", matched.ID(), "error", err)
		result.Err = err
		return result
	}
	result.Response = resp
	return result
}

// bucketKey selects the rate-limit bucket. "header:<Name>" buckets by the
// header value within the rule, an empty key uses one bucket per rule and
// any other key names a bucket shared across rules.
func bucketKey(id, key string, req *rule.Request) string {
	if name, ok := strings.CutPrefix(key, "header:"); ok && name != "" {
		return id + "|" + name + "=" + req.Header.Get(name)
	}
	if key != "" {
		return key
	}
	return id
}
