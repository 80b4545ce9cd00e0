package rule

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/urlmatch"
)

// Builder accumulates the parts of a rule during registration. It is safe
// for concurrent use: each call is applied atomically, so a concurrent Build
// sees the state after some prefix of the calls. Build copies that state
// into an independent Rule.
type Builder struct {
	mu         sync.Mutex
	id         string
	url        urlmatch.Conditions
	conditions []Condition
	bundles    []Bundle
	err        error
}

// NewBuilder starts a rule for method. An empty method accepts every method.
func NewBuilder(method string) *Builder {
	b := &Builder{}
	if method != "" {
		b.conditions = append(b.conditions, Method(method))
	}
	return b
}

// SetID names the rule in debug output and traces.
func (b *Builder) SetID(id string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = id
	return b
}

// ID returns the identifier set with SetID.
func (b *Builder) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

// Fail records a registration error. Only the first error is kept.
func (b *Builder) Fail(err error) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failLocked(err)
	return b
}

func (b *Builder) failLocked(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// Err returns the first registration error, if any.
func (b *Builder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// AddCondition appends a condition.
func (b *Builder) AddCondition(c Condition) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conditions = append(b.conditions, c)
	return b
}

// JoinURL merges URL conditions into the accumulated ones, last write winning per component.
func (b *Builder) JoinURL(c urlmatch.Conditions) *Builder {
	return b.joinURL(c, nil)
}

// joinURL joins c, or records err instead when it is not nil.
func (b *Builder) joinURL(c urlmatch.Conditions, err error) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failLocked(err)
		return b
	}
	b.url = urlmatch.Join(b.url, c)
	return b
}

// AddURLPattern parses pattern and joins it. Parse failures are recorded.
func (b *Builder) AddURLPattern(pattern string) *Builder {
	return b.joinURL(urlmatch.Parse(pattern))
}

// AddHostCondition constrains the host, or scheme, host and port for an origin.
func (b *Builder) AddHostCondition(host string) *Builder {
	return b.joinURL(urlmatch.Host(host))
}

// AddPathCondition constrains the path.
func (b *Builder) AddPathCondition(m match.Matcher) *Builder {
	return b.JoinURL(urlmatch.Path(m))
}

// AddParameterCondition constrains one query parameter.
func (b *Builder) AddParameterCondition(name string, values match.ValuesMatcher) *Builder {
	return b.JoinURL(urlmatch.Param(name, values))
}

// AddReferenceCondition constrains the fragment.
func (b *Builder) AddReferenceCondition(m match.Matcher) *Builder {
	return b.JoinURL(urlmatch.Fragment(m))
}

// AddAction appends a to the current bundle, starting one if none exists.
func (b *Builder) AddAction(a Action) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bundles) == 0 {
		b.bundles = append(b.bundles, nil)
	}
	last := len(b.bundles) - 1
	b.bundles[last] = append(b.bundles[last], a)
	return b
}

// AddActionBundle starts a new bundle holding actions.
func (b *Builder) AddActionBundle(actions ...Action) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bundles = append(b.bundles, slices.Clone(Bundle(actions)))
	return b
}

// Bundles returns the number of bundles registered so far.
func (b *Builder) Bundles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bundles)
}

// Build copies the accumulated state into a new Rule. It fails with the
// recorded registration error, if any.
func (b *Builder) Build() (*Rule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, fmt.Errorf("rule %s: %w", b.label(), b.err)
	}
	bundles := make([]Bundle, len(b.bundles))
	for i, bundle := range b.bundles {
		bundles[i] = slices.Clone(bundle)
	}
	return &Rule{
		id:         b.id,
		url:        b.url,
		conditions: slices.Clone(b.conditions),
		bundles:    bundles,
	}, nil
}

func (b *Builder) label() string {
	if b.id != "" {
		return fmt.Sprintf("%q", b.id)
	}
	return "<unnamed>"
}
