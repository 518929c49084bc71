package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/cells/pkg/cell"
)

// GraphDebug logs the dependency graph of the owners involved in a cascade
// when one of its formulas panics.
//
// Usage:
//
//	ext := middleware.NewGraphDebug(slog.NewTextHandler(os.Stderr, nil))
//	rt := cell.NewRuntime(cell.WithExtensions(ext))
//
// The extension logs at ERROR level. It tracks one cascade at a time, so
// use it on runtimes whose writes are serialized.
type GraphDebug struct {
	cell.BaseExtension
	logger *slog.Logger

	mu sync.Mutex
	// origin is the owner of the last write made outside any run.
	origin cell.Owner
	// stack holds the owners of the runs currently in progress.
	stack []cell.Owner
}

// NewGraphDebug creates a graph debug extension logging to logHandler.
func NewGraphDebug(logHandler slog.Handler) *GraphDebug {
	return &GraphDebug{
		BaseExtension: cell.NewBaseExtension("graph-debug"),
		logger:        slog.New(logHandler),
	}
}

// Order implements cell.Extension.
func (g *GraphDebug) Order() int { return 5 }

// OnWrite remembers where a top-level cascade started.
func (g *GraphDebug) OnWrite(w *cell.Write) {
	if !w.Changed {
		return
	}
	g.mu.Lock()
	if len(g.stack) == 0 {
		g.origin = w.Owner
	}
	g.mu.Unlock()
}

// WrapRun tracks the runs in progress.
func (g *GraphDebug) WrapRun(ctx context.Context, r *cell.Run, next func(ctx context.Context)) {
	g.mu.Lock()
	if len(g.stack) == 0 && r.Initial {
		// A top-level Calculate is not part of the previous write's cascade.
		g.origin = nil
	}
	g.stack = append(g.stack, r.Owner)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.stack = g.stack[:len(g.stack)-1]
		g.mu.Unlock()
	}()

	next(ctx)
}

// OnPanic logs the graph of the cascade that panicked.
func (g *GraphDebug) OnPanic(r *cell.Run, recovered any) {
	g.mu.Lock()
	owners := make([]cell.Owner, 0, len(g.stack)+2)
	if g.origin != nil {
		owners = append(owners, g.origin)
	}
	owners = append(owners, g.stack...)
	owners = append(owners, r.Owner)
	g.mu.Unlock()

	target := r.Target
	if r.Owner != nil {
		target = fmt.Sprintf("%s#%d.%s", r.Owner.Label(), r.Owner.ID(), r.Target)
	}
	g.logger.Error("Formula Panic",
		"target", target,
		"panic", fmt.Sprintf("%v", recovered),
		"depth", r.Depth,
		"dependency_graph", FormatGraph(owners...),
	)
}

// FormatGraph renders the dependency edges of the given owners, one block
// per owner. Duplicate and nil owners are skipped.
//
// Example output:
//
//	motor#1
//	  speed
//	    ├─> motor#1.rpm
//	    └─> tire#2.pressure
func FormatGraph(owners ...cell.Owner) string {
	var sb strings.Builder
	seen := make(map[uint64]bool, len(owners))

	for _, o := range owners {
		if o == nil || seen[o.ID()] {
			continue
		}
		seen[o.ID()] = true

		fmt.Fprintf(&sb, "%s#%d\n", o.Label(), o.ID())

		deps := o.Dependencies()
		if len(deps) == 0 {
			sb.WriteString("  (no dependents)\n")
			continue
		}

		cells := make([]string, 0, len(deps))
		for c := range deps {
			cells = append(cells, c)
		}
		sort.Strings(cells)

		for _, c := range cells {
			fmt.Fprintf(&sb, "  %s\n", c)
			targets := deps[c]
			for i, t := range targets {
				if i == len(targets)-1 {
					fmt.Fprintf(&sb, "    └─> %s\n", t)
				} else {
					fmt.Fprintf(&sb, "    ├─> %s\n", t)
				}
			}
		}
	}
	return sb.String()
}
