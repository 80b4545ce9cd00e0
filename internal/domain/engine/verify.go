package engine

import (
	"github.com/sophialabs/clientmock/internal/domain/rule"
)

// Verification is the number of logged requests accepted by a rule.
type Verification struct {
	Rule   string
	Actual int
	err    error
}

// Verify builds b and counts the logged requests it matches. b's response
// bundles, if any, are ignored.
func (r *Registry) Verify(b *rule.Builder) Verification {
	v := Verification{Rule: b.ID()}
	if v.Rule == "" {
		v.Rule = "rule"
	}

	built, err := b.Build()
	if err != nil {
		v.err = err
		return v
	}
	for _, req := range r.Requests() {
		if built.Matches(req) {
			v.Actual++
		}
	}
	return v
}

// Err returns the registration error of the verification builder, if any.
func (v Verification) Err() error {
	return v.err
}

// Exactly fails unless exactly n requests matched.
func (v Verification) Exactly(n int) error {
	return v.check(BoundExactly, n, v.Actual == n)
}

// AtLeast fails unless n or more requests matched.
func (v Verification) AtLeast(n int) error {
	return v.check(BoundAtLeast, n, v.Actual >= n)
}

// AtMost fails unless at most n requests matched.
func (v Verification) AtMost(n int) error {
	return v.check(BoundAtMost, n, v.Actual <= n)
}

// Never fails if any request matched.
func (v Verification) Never() error {
	return v.Exactly(0)
}

func (v Verification) check(bound Bound, expected int, ok bool) error {
	if v.err != nil {
		return v.err
	}
	if ok {
		return nil
	}
	return &VerificationMismatchError{Rule: v.Rule, Bound: bound, Expected: expected, Actual: v.Actual}
}
