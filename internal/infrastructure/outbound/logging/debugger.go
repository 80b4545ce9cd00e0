package logging

import (
	"strconv"

	"github.com/sophialabs/clientmock/internal/domain/trace"
	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
)

// Debugger reports dispatches through logger: matches at debug level,
// unmatched requests at warn level with the checks each rule failed.
func Debugger(logger ports.Logger) trace.Debugger {
	return trace.DebuggerFunc(func(e trace.Entry) {
		if e.HasMatch() {
			logger.Debug("request matched rule",
				"method", e.Method, "url", e.URL, "rule", e.Matched, "rule_id", e.MatchedID)
			return
		}

		args := []any{"method", e.Method, "url", e.URL, "rules", len(e.Rules)}
		for _, r := range e.Rules {
			failed := r.Failed()
			descriptions := make([]string, len(failed))
			for i, c := range failed {
				descriptions[i] = c.Description
			}
			key := "rule_" + strconv.Itoa(r.Index)
			if r.ID != "" {
				key = "rule_" + r.ID
			}
			args = append(args, key, descriptions)
		}
		logger.Warn("no rule matched request", args...)
	})
}
