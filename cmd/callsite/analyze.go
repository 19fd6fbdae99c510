package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/callsite/ir"
)

type options struct {
	propagate bool
	inline    bool
}

type result struct {
	Propagated int
	Inferred   []*ir.Scope
	Inlined    int
}

// analyze runs the passes over every scope of a: copy propagation, method
// flag inference, then inlining of static calls.
func analyze(a *ir.Arena, opts options) result {
	var res result
	scopes := a.Scopes()

	if opts.propagate {
		for _, s := range scopes {
			res.Propagated += ir.PropagateCopies(s)
		}
	}

	for _, s := range scopes {
		if ir.InferMethodFlags(s) != 0 {
			res.Inferred = append(res.Inferred, s)
		}
	}

	if opts.inline {
		for _, s := range scopes {
			// Walk backwards so splicing does not shift pending indices.
			for i := len(s.Instrs()) - 1; i >= 0; i-- {
				if _, ok := s.Instrs()[i].(*ir.CallInstr); !ok {
					continue
				}
				err := ir.InlineCall(s, i)
				if errors.Is(err, ir.ErrNotInlinable) {
					log.Debugf("%s[%d]: %v", s, i, err)
					continue
				}
				if err != nil {
					log.Warningf("%s[%d]: %v", s, i, err)
					continue
				}
				res.Inlined++
			}
		}
	}
	return res
}

// writeListing prints every non-empty scope with the flags of its calls.
func writeListing(w io.Writer, a *ir.Arena) {
	for _, s := range a.Scopes() {
		if len(s.Instrs()) == 0 {
			continue
		}
		fmt.Fprint(w, s.Dump())
		for i, instr := range s.Instrs() {
			c, ok := instr.(*ir.CallInstr)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "      ; %d: %s\n", i, annotate(c))
		}
		sum := ir.AnalyzeScope(s)
		fmt.Fprintf(w, "      ; calls=%d static=%d eval=%d barriers=%v frame=%t\n\n",
			sum.Calls, sum.StaticCalls, sum.EvalCalls, sum.Barriers, sum.RequiresFrame)
	}
}

func annotate(c *ir.CallInstr) string {
	var tags []string
	if c.CanBeEval() {
		tags = append(tags, "eval")
	}
	if c.RequiresFrame() {
		tags = append(tags, "frame")
	}
	if c.IsDataflowBarrier() {
		tags = append(tags, "barrier")
	}
	if c.CanModifyCode() {
		tags = append(tags, "modifies-code")
	}
	if t := c.TargetMethod(); t != nil {
		tags = append(tags, "target="+t.String())
	}
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, " ")
}
