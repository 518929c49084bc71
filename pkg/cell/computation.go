package cell

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// target is the slot a computation writes its result to.
type target interface {
	// owner returns the registry of the target's owner.
	owner() *host

	// key identifies the slot on the owner: a cell name, "[i]" or "[i:]".
	key() string

	// assign writes a formula result through the owner's setter.
	assign(v any)
}

// computation binds a formula to a target. It is re-run as a whole whenever
// one of the cells it read last time changes, so formulas that branch on a
// cell value pick up their new dependencies.
type computation struct {
	id      uint64
	target  target
	formula func() any

	// retired is set when another formula was bound to the same target.
	retired atomic.Bool
}

func (c *computation) describe() string {
	return c.target.owner().String() + "." + c.target.key()
}

// calculate binds formula to t and evaluates it once.
func calculate(t target, formula func() any) {
	c := &computation{id: nextID(), target: t, formula: formula}
	t.owner().bind(c)
	c.run(true)
}

// run evaluates the formula under a fresh trace, assigns the result and
// registers an edge for every cell read.
func (c *computation) run(initial bool) {
	h := c.target.owner()
	rt := h.rt

	tc, gid := getTrackingContext()
	if tc.depth == 0 && tc.current == nil {
		tc.unwinding = false
	}
	// Extensions may call Trace or Untracked before next; tc must stay
	// registered until the run ends.
	tc.pins++
	r := &Run{
		ID:      c.id,
		Owner:   h.self,
		Target:  c.target.key(),
		Initial: initial,
		Depth:   tc.depth,
	}
	parent := currentContext(tc)

	defer func() {
		if p := recover(); p != nil {
			if !tc.unwinding {
				tc.unwinding = true
				rt.Logger().Debug("cell: formula panicked",
					"target", c.describe(),
					"panic", p,
				)
				rt.onPanic(r, p)
			}
			tc.pins--
			releaseTrackingContext(tc, gid)
			panic(p)
		}
		tc.pins--
		releaseTrackingContext(tc, gid)
	}()

	rt.wrapRun(parent, r, func(ctx context.Context) {
		prev := tc.ctx
		tc.ctx = ctx
		defer func() { tc.ctx = prev }()

		var v any
		reads := trace(func() { v = c.formula() })
		if len(rt.extensions) > 0 {
			r.Reads = make([]Read, len(reads))
			for i, rd := range reads {
				r.Reads[i] = Read{Owner: rd.h.self, Cell: rd.cell}
			}
		}

		if logger := rt.Logger(); !initial && logger.Enabled(ctx, slog.LevelDebug) {
			logger.Debug("cell: recomputed",
				"target", c.describe(),
				"sources", len(reads),
			)
		}

		c.target.assign(v)
		for _, rd := range reads {
			rd.h.addEdge(rd.cell, c)
		}
	})
}
