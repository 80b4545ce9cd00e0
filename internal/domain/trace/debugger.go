package trace

import (
	"fmt"
	"io"
	"sync"
)

// Debugger observes dispatches for diagnostics. It must not influence the outcome.
type Debugger interface {
	Debug(e Entry)
}

// DebuggerFunc adapts a function to Debugger.
type DebuggerFunc func(Entry)

func (f DebuggerFunc) Debug(e Entry) { f(e) }

type nop struct{}

func (nop) Debug(Entry) {}

// Nop returns a Debugger that discards every entry.
func Nop() Debugger { return nop{} }

// Tee fans an entry out to every non-nil debugger in order.
func Tee(debuggers ...Debugger) Debugger {
	return DebuggerFunc(func(e Entry) {
		for _, d := range debuggers {
			if d != nil {
				d.Debug(e)
			}
		}
	})
}

var _ Debugger = (*Printer)(nil)

// Printer writes entries as a MATCHES/EXPECTED table.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Debug(e Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "Request: %s %s\n", e.Method, e.URL)
	if len(e.Rules) == 0 {
		fmt.Fprintln(p.w, "No rules were defined.")
	}
	for _, r := range e.Rules {
		if r.ID != "" {
			fmt.Fprintf(p.w, "Rule %d (%s):\n", r.Index+1, r.ID)
		} else {
			fmt.Fprintf(p.w, "Rule %d:\n", r.Index+1)
		}
		fmt.Fprintln(p.w, "\tMATCHES\t\tEXPECTED")
		for _, c := range r.Conditions {
			fmt.Fprintf(p.w, "\t%t\t\t%s\n", c.Matched, c.Description)
		}
		for _, c := range r.URL {
			fmt.Fprintf(p.w, "\t%t\t\t%s\n", c.Matched, c.Description)
		}
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "----------------")
}
