package match

import (
	"slices"
	"strconv"
	"strings"
)

// ValuesMatcher tests the full list of values of a multi-valued field,
// such as a repeated query parameter.
type ValuesMatcher struct {
	test        func([]string) bool
	description string
}

// Matches reports whether values are accepted. The zero ValuesMatcher accepts any list.
func (v ValuesMatcher) Matches(values []string) bool {
	if v.test == nil {
		return true
	}
	return v.test(values)
}

func (v ValuesMatcher) String() string {
	if v.description == "" {
		return "any values"
	}
	return v.description
}

// InAnyOrder accepts a list holding exactly want, each value as many times, in any order.
func InAnyOrder(want ...string) ValuesMatcher {
	expected := slices.Clone(want)
	slices.Sort(expected)

	quoted := make([]string, len(want))
	for i, w := range want {
		quoted[i] = strconv.Quote(w)
	}

	return ValuesMatcher{
		test: func(values []string) bool {
			if len(values) != len(expected) {
				return false
			}
			got := slices.Clone(values)
			slices.Sort(got)
			return slices.Equal(got, expected)
		},
		description: "[" + strings.Join(quoted, ", ") + "] in any order",
	}
}

// Each accepts a non-empty list whose every value is accepted by m.
func Each(m Matcher) ValuesMatcher {
	return ValuesMatcher{
		test: func(values []string) bool {
			if len(values) == 0 {
				return false
			}
			for _, v := range values {
				if !m.Matches(v) {
					return false
				}
			}
			return true
		},
		description: "each " + m.String(),
	}
}
