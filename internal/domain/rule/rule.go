package rule

import (
	"sync"

	"github.com/sophialabs/clientmock/internal/domain/trace"
	"github.com/sophialabs/clientmock/internal/domain/urlmatch"
)

// Rule pairs a match predicate with a queue of response bundles. Everything
// but the queue is fixed once the rule is built.
type Rule struct {
	id         string
	url        urlmatch.Conditions
	conditions []Condition

	mu      sync.Mutex
	bundles []Bundle
}

// ID returns the rule identifier, empty when none was assigned.
func (r *Rule) ID() string {
	return r.id
}

// Matches reports whether the URL conditions and every condition accept req.
func (r *Rule) Matches(req *Request) bool {
	if !r.url.Matches(req.URL) {
		return false
	}
	for _, c := range r.conditions {
		if !c.Matches(req) {
			return false
		}
	}
	return true
}

// Produce consumes the next bundle and applies it to req. While more than one
// bundle is queued the head is removed; the last bundle is reused forever.
// A rule without bundles answers 200 with an empty body.
func (r *Rule) Produce(req *Request) (*Response, error) {
	return r.next().Apply(req)
}

func (r *Rule) next() Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch len(r.bundles) {
	case 0:
		return nil
	case 1:
		return r.bundles[0]
	default:
		head := r.bundles[0]
		r.bundles = r.bundles[1:]
		return head
	}
}

// Pending returns the number of queued bundles.
func (r *Rule) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bundles)
}

// Report replays the match of req condition by condition.
func (r *Rule) Report(index int, req *Request) trace.RuleReport {
	report := trace.RuleReport{
		Index:      index,
		ID:         r.id,
		Matched:    r.Matches(req),
		Conditions: make([]trace.Check, 0, len(r.conditions)),
		URL:        r.url.Report(req.URL),
	}
	for _, c := range r.conditions {
		report.Conditions = append(report.Conditions, trace.Check{
			Matched:     c.Matches(req),
			Description: c.Describe(),
		})
	}
	return report
}
