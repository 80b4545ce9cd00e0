package match

// Predicate tests a string value and reports whether it is accepted.
type Predicate func(string) bool

// And accepts a value only when every predicate does. An empty list accepts everything.
func And(predicates ...Predicate) Predicate {
	return func(s string) bool {
		for _, p := range predicates {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// Or accepts a value when at least one predicate does. An empty list accepts nothing.
func Or(predicates ...Predicate) Predicate {
	return func(s string) bool {
		for _, p := range predicates {
			if p(s) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(s string) bool {
		return !p(s)
	}
}

// Always accepts every value.
func Always() Predicate {
	return func(string) bool { return true }
}

// Never rejects every value.
func Never() Predicate {
	return func(string) bool { return false }
}
