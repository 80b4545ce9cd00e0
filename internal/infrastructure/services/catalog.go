package services

import (
	"slices"
	"strings"

	"github.com/sophialabs/clientmock/internal/domain/rule"
	"github.com/sophialabs/clientmock/internal/domain/scenario"
)

// Catalog holds the compiled definitions of one load, in registration order.
type Catalog struct {
	defs     []*Definition
	policies map[string]*scenario.Policy
	byID     map[string]*Definition
}

// NewCatalog orders defs for registration: ascending priority, then file
// order. Since the last matching rule wins, a higher priority takes
// precedence among rules matching the same request.
func NewCatalog(defs []*Definition) *Catalog {
	ordered := slices.Clone(defs)
	slices.SortStableFunc(ordered, func(a, b *Definition) int {
		return a.Priority - b.Priority
	})

	c := &Catalog{
		defs:     ordered,
		policies: make(map[string]*scenario.Policy),
		byID:     make(map[string]*Definition, len(ordered)),
	}
	for _, d := range ordered {
		c.byID[d.ID] = d
		if d.Policy != nil {
			c.policies[d.ID] = d.Policy
		}
	}
	return c
}

// Definitions returns the definitions in registration order.
func (c *Catalog) Definitions() []*Definition {
	return c.defs
}

// Builders returns every definition's builder in registration order.
func (c *Catalog) Builders() []*rule.Builder {
	out := make([]*rule.Builder, len(c.defs))
	for i, d := range c.defs {
		out[i] = d.Builder
	}
	return out
}

// Lookup finds a definition by ID.
func (c *Catalog) Lookup(id string) (*Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Policy returns the policy of the rule with the given ID, or nil.
func (c *Catalog) Policy(id string) *scenario.Policy {
	return c.policies[id]
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Sources returns the distinct source files, sorted.
func (c *Catalog) Sources() []string {
	var files []string
	for _, d := range c.defs {
		if d.SourceFile != "" {
			files = append(files, d.SourceFile)
		}
	}
	slices.SortFunc(files, strings.Compare)
	return slices.Compact(files)
}
