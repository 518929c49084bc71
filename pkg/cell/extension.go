package cell

import "context"

// Extension hooks into propagation. Extensions are registered on a Runtime
// and see every write, notification and computation run of the owners it
// creates.
type Extension interface {
	// Name returns the extension's name.
	Name() string

	// Order determines execution order (lower = earlier, outermost wrap).
	Order() int

	// OnWrite is called for every write. Changed is false when the write
	// was suppressed because the value did not change.
	OnWrite(w *Write)

	// OnNotify is called right before an observer callback runs.
	OnNotify(n *Notify)

	// WrapRun intercepts a computation run (evaluation, assignment and edge
	// registration). Implementations must call next exactly once, passing
	// the context that nested runs should inherit.
	WrapRun(ctx context.Context, r *Run, next func(ctx context.Context))

	// OnPrune is called after expired registrations were dropped.
	OnPrune(p *Prune)

	// OnPanic is called once when a formula or an observer panics inside a
	// run. The panic keeps propagating afterwards.
	OnPanic(r *Run, recovered any)
}

// Write describes a cell write.
type Write struct {
	Owner   Owner
	Cell    CellID
	Old     any
	New     any
	Changed bool
}

// Notify describes one observer invocation.
type Notify struct {
	Owner    Owner
	Cell     CellID
	Observer uint64
}

// Run describes one computation run.
type Run struct {
	// ID identifies the computation; it is stable across re-runs.
	ID uint64

	// Owner is the owner of the target cell.
	Owner Owner

	// Target is the target slot on Owner, a cell name or "[i]" / "[i:]".
	Target string

	// Initial is true for the evaluation performed by Calculate itself.
	Initial bool

	// Depth is the cascade nesting level the run started at.
	Depth int

	// Reads holds the formula's read trace once it has returned.
	Reads []Read
}

// Prune describes registrations dropped from one cell.
type Prune struct {
	Owner     Owner
	Cell      string
	Observers int
	Edges     int
}

// BaseExtension provides no-op implementations of every hook.
// Embed it and override what you need.
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a base extension with the given name.
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) OnWrite(w *Write) {}

func (e *BaseExtension) OnNotify(n *Notify) {}

func (e *BaseExtension) WrapRun(ctx context.Context, r *Run, next func(ctx context.Context)) {
	next(ctx)
}

func (e *BaseExtension) OnPrune(p *Prune) {}

func (e *BaseExtension) OnPanic(r *Run, recovered any) {}
