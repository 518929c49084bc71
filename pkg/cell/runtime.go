package cell

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
)

// Runtime carries the configuration shared by a family of owners: logger,
// extensions and the optional cascade depth limit.
type Runtime struct {
	logger     *slog.Logger
	extensions []Extension
	maxDepth   int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for debug records about propagation.
// If unset, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// WithExtensions registers extensions. They run sorted by Order.
func WithExtensions(exts ...Extension) Option {
	return func(rt *Runtime) {
		rt.extensions = append(rt.extensions, exts...)
	}
}

// WithMaxDepth bounds the nesting of cascades. A write whose cascade nests
// deeper than n panics with ErrDepthExceeded. 0 means unlimited, which lets
// a cyclic graph recurse until the stack is exhausted.
func WithMaxDepth(n int) Option {
	return func(rt *Runtime) {
		rt.maxDepth = n
	}
}

// NewRuntime creates a runtime with the given options.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{}
	for _, opt := range opts {
		opt(rt)
	}
	sort.SliceStable(rt.extensions, func(i, j int) bool {
		return rt.extensions[i].Order() < rt.extensions[j].Order()
	})
	return rt
}

var defaultRuntime atomic.Pointer[Runtime]

func init() {
	defaultRuntime.Store(NewRuntime())
}

// Default returns the runtime used by NewObject, NewSlice and Class.New.
func Default() *Runtime {
	return defaultRuntime.Load()
}

// SetDefault replaces the default runtime. Owners created earlier keep the
// runtime they were created with.
func SetDefault(rt *Runtime) {
	if rt == nil {
		rt = NewRuntime()
	}
	defaultRuntime.Store(rt)
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	if rt.logger != nil {
		return rt.logger
	}
	return slog.Default()
}

// Extensions returns the registered extensions in execution order.
func (rt *Runtime) Extensions() []Extension {
	out := make([]Extension, len(rt.extensions))
	copy(out, rt.extensions)
	return out
}

// enter marks the start of a cascade step on the current goroutine and
// enforces the depth limit.
func (rt *Runtime) enter(h *host, cell string) (*trackingContext, uint64) {
	tc, gid := getTrackingContext()
	if tc.depth == 0 {
		tc.unwinding = false
	}
	tc.depth++
	if rt.maxDepth > 0 && tc.depth > rt.maxDepth {
		tc.depth--
		releaseTrackingContext(tc, gid)
		panic(&Error{Op: "set", Owner: h.String(), Cell: cell, Err: ErrDepthExceeded})
	}
	return tc, gid
}

// leave undoes enter.
func (rt *Runtime) leave(tc *trackingContext, gid uint64) {
	tc.depth--
	releaseTrackingContext(tc, gid)
}

func (rt *Runtime) onWrite(h *host, id CellID, oldValue, newValue any, changed bool) {
	if len(rt.extensions) == 0 {
		return
	}
	w := &Write{Owner: h.self, Cell: id, Old: oldValue, New: newValue, Changed: changed}
	for _, ext := range rt.extensions {
		ext.OnWrite(w)
	}
}

func (rt *Runtime) onNotify(h *host, id CellID, o *Observer) {
	if len(rt.extensions) == 0 {
		return
	}
	n := &Notify{Owner: h.self, Cell: id, Observer: o.id}
	for _, ext := range rt.extensions {
		ext.OnNotify(n)
	}
}

func (rt *Runtime) onPrune(h *host, cell string, observers, edges int) {
	rt.Logger().Debug("cell: pruned expired registrations",
		"owner", h.String(),
		"cell", cell,
		"observers", observers,
		"edges", edges,
	)
	if len(rt.extensions) == 0 {
		return
	}
	p := &Prune{Owner: h.self, Cell: cell, Observers: observers, Edges: edges}
	for _, ext := range rt.extensions {
		ext.OnPrune(p)
	}
}

func (rt *Runtime) onPanic(r *Run, recovered any) {
	for _, ext := range rt.extensions {
		ext.OnPanic(r, recovered)
	}
}

// wrapRun runs fn inside every extension's WrapRun, lowest Order outermost.
func (rt *Runtime) wrapRun(ctx context.Context, r *Run, fn func(ctx context.Context)) {
	next := fn
	for i := len(rt.extensions) - 1; i >= 0; i-- {
		ext, inner := rt.extensions[i], next
		next = func(ctx context.Context) {
			ext.WrapRun(ctx, r, inner)
		}
	}
	next(ctx)
}
