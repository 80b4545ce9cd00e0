package services

import (
	"fmt"

	"github.com/sophialabs/clientmock/internal/domain/match"
	"github.com/sophialabs/clientmock/internal/domain/scenario"
)

// CompileStringMatcher turns a declarative matcher into a match.Matcher.
// The zero matcher accepts anything.
func CompileStringMatcher(m scenario.StringMatcher) (match.Matcher, error) {
	switch m.Kind {
	case scenario.MatchAny:
		return match.Any(), nil
	case scenario.MatchExact:
		return match.Equal(m.Value), nil
	case scenario.MatchGlob:
		g, err := match.Glob(m.Value)
		if err != nil {
			return match.Matcher{}, fmt.Errorf("invalid glob pattern %q: %w", m.Value, err)
		}
		return g, nil
	case scenario.MatchRegex:
		if m.Value == "" {
			return match.Any(), nil
		}
		re, err := match.Regex(m.Value)
		if err != nil {
			return match.Matcher{}, fmt.Errorf("invalid regex pattern %q: %w", m.Value, err)
		}
		return re, nil
	default:
		return match.Matcher{}, fmt.Errorf("unknown matcher kind %q", m.Kind)
	}
}
