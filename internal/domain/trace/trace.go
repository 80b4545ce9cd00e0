package trace

import "time"

// Entry records one dispatch: the request, the per-rule evaluation and the outcome.
type Entry struct {
	Timestamp time.Time    `json:"timestamp"`
	Method    string       `json:"method"`
	URL       string       `json:"url"`
	Matched   int          `json:"matched"` // index into Rules, -1 when no rule matched
	MatchedID string       `json:"matched_id,omitempty"`
	Rules     []RuleReport `json:"rules"`
}

// HasMatch reports whether a rule was selected.
func (e Entry) HasMatch() bool {
	return e.Matched >= 0
}

// RuleReport records how a single rule evaluated against a request.
type RuleReport struct {
	Index      int     `json:"index"`
	ID         string  `json:"id,omitempty"`
	Matched    bool    `json:"matched"`
	Conditions []Check `json:"conditions"`
	URL        []Check `json:"url"`
}

// Check is one (matched, expectation) pair.
type Check struct {
	Matched     bool   `json:"matched"`
	Description string `json:"description"`
}

// Failed returns the checks in the report that did not match.
func (r RuleReport) Failed() []Check {
	var failed []Check
	for _, c := range r.Conditions {
		if !c.Matched {
			failed = append(failed, c)
		}
	}
	for _, c := range r.URL {
		if !c.Matched {
			failed = append(failed, c)
		}
	}
	return failed
}
