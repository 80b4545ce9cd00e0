package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatchingRule is matched by every dispatch that found no rule.
	ErrNoMatchingRule = errors.New("no matching rule")

	// ErrVerificationMismatch is matched by every failed call-count verification.
	ErrVerificationMismatch = errors.New("verification mismatch")
)

// NoMatchingRuleError reports a request that no registered rule accepted.
type NoMatchingRuleError struct {
	Method string
	URL    string
}

func (e *NoMatchingRuleError) Error() string {
	return fmt.Sprintf("no rule matches request %s %s", e.Method, e.URL)
}

func (e *NoMatchingRuleError) Is(target error) bool {
	return target == ErrNoMatchingRule
}

// Bound names the comparison a verification applies.
type Bound string

const (
	// BoundExactly requires the observed count to equal the expected one.
	BoundExactly Bound = "exactly"
	// BoundAtLeast requires at least the expected count.
	BoundAtLeast Bound = "at least"
	// BoundAtMost requires at most the expected count.
	BoundAtMost Bound = "at most"
)

// VerificationMismatchError reports an observed call count that disagrees with the expectation.
type VerificationMismatchError struct {
	Rule     string
	Bound    Bound
	Expected int
	Actual   int
}

func (e *VerificationMismatchError) Error() string {
	if e.Bound == BoundExactly {
		return fmt.Sprintf("%s: expected %d calls, but found %d", e.Rule, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: expected %s %d calls, but found %d", e.Rule, e.Bound, e.Expected, e.Actual)
}

func (e *VerificationMismatchError) Is(target error) bool {
	return target == ErrVerificationMismatch
}
