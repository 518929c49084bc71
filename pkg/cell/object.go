package cell

import (
	"context"
	"log/slog"
	"sync"
)

// Object owns a set of named cells.
//
// An object created with a list of cell names is closed: using any other
// name panics with ErrUnknownCell. An object created without names is open
// and accepts any name; unset cells read as nil.
type Object struct {
	host

	valuesMu sync.RWMutex
	values   map[string]any
	equals   map[string]func(a, b any) bool

	// declared is nil for open objects.
	declared map[string]struct{}

	// order lists the declared cells, or the cells of an open object in
	// the order they were first set.
	order []string
}

// NewObject creates an object on the default runtime.
func NewObject(label string, cells ...string) *Object {
	return Default().NewObject(label, cells...)
}

// NewObject creates an object owned by rt. See Object for the meaning of
// cells.
func (rt *Runtime) NewObject(label string, cells ...string) *Object {
	if label == "" {
		label = "object"
	}
	o := &Object{values: make(map[string]any)}
	o.host.init(rt, label, o)

	if len(cells) > 0 {
		o.declared = make(map[string]struct{}, len(cells))
		for _, c := range cells {
			if _, dup := o.declared[c]; dup {
				continue
			}
			o.declared[c] = struct{}{}
			o.order = append(o.order, c)
		}
	}
	return o
}

// check panics if name is not a cell of a closed object.
func (o *Object) check(op, name string) {
	if o.declared == nil {
		return
	}
	if _, ok := o.declared[name]; !ok {
		panic(&Error{Op: op, Owner: o.String(), Cell: name, Err: ErrUnknownCell})
	}
}

// Has reports whether name is usable on the object.
func (o *Object) Has(name string) bool {
	if o.declared == nil {
		return true
	}
	_, ok := o.declared[name]
	return ok
}

// Closed reports whether the object only accepts its declared cells.
func (o *Object) Closed() bool {
	return o.declared != nil
}

// Get returns the value of a cell and records the read in the active trace.
func (o *Object) Get(name string) any {
	o.check("get", name)
	recordRead(&o.host, name)

	o.valuesMu.RLock()
	v := o.values[name]
	o.valuesMu.RUnlock()
	return v
}

// Peek returns the value of a cell without recording a read.
func (o *Object) Peek(name string) any {
	o.check("peek", name)

	o.valuesMu.RLock()
	defer o.valuesMu.RUnlock()
	return o.values[name]
}

// Set writes a cell. If v equals the current value nothing happens;
// otherwise observers are notified and dependents recomputed before Set
// returns.
func (o *Object) Set(name string, v any) {
	o.check("set", name)

	o.valuesMu.RLock()
	old := o.values[name]
	eq := Equal
	if fn := o.equals[name]; fn != nil {
		eq = fn
	}
	o.valuesMu.RUnlock()

	// eq is user code: it may panic or read this object.
	if eq(old, v) {
		o.rt.onWrite(&o.host, CellID{Name: name}, old, v, false)
		return
	}

	o.valuesMu.Lock()
	if _, seen := o.values[name]; !seen && o.declared == nil {
		o.order = append(o.order, name)
	}
	o.values[name] = v
	o.valuesMu.Unlock()

	if logger := o.rt.Logger(); logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("cell: set",
			"owner", o.String(),
			"cell", name,
			"old", old,
			"new", v,
		)
	}

	o.changed(name, CellID{Name: name}, v, old)
}

// SetEquals replaces the equality used to suppress no-op writes of a cell.
func (o *Object) SetEquals(name string, fn func(a, b any) bool) {
	o.check("equals", name)

	o.valuesMu.Lock()
	defer o.valuesMu.Unlock()
	if o.equals == nil {
		o.equals = make(map[string]func(a, b any) bool)
	}
	o.equals[name] = fn
}

// Calculate binds formula to a cell: the cell is set to the formula's
// result now and every time one of the cells the formula read changes.
// Binding a new formula to the same cell replaces the previous one.
func (o *Object) Calculate(name string, formula func() any) {
	o.check("calculate", name)
	calculate(namedTarget{obj: o, name: name}, formula)
}

// Observe registers fn for the cells selected by spec. A nil pattern
// matches every value. Keep the returned handle reachable for as long as fn
// should fire.
func (o *Object) Observe(spec Spec, pattern Pattern, fn ObserverFunc) *Observer {
	return o.Watch(NewObserver(fn), spec, pattern)
}

// Watch registers an existing handle for the cells selected by spec and
// returns it. The same handle can be registered several times under
// different patterns.
func (o *Object) Watch(h *Observer, spec Spec, pattern Pattern) *Observer {
	cells := spec.Cells()
	for _, c := range cells {
		o.check("observe", c)
	}
	o.observe(cells, pattern, h)
	return h
}

// Unobserve removes the registrations of h and returns how many were
// removed. Use InCells and WithPattern to narrow the removal.
func (o *Object) Unobserve(h *Observer, opts ...UnobserveOption) int {
	return o.unobserve(h, buildUnobserveOptions(opts))
}

// Cells returns the names of the object's cells: the declared ones, or for
// an open object the ones set so far.
func (o *Object) Cells() []string {
	o.valuesMu.RLock()
	defer o.valuesMu.RUnlock()

	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Snapshot returns a copy of all cell values without recording reads.
func (o *Object) Snapshot() map[string]any {
	o.valuesMu.RLock()
	defer o.valuesMu.RUnlock()

	out := make(map[string]any, len(o.order))
	for _, c := range o.order {
		out[c] = o.values[c]
	}
	return out
}

// namedTarget is the computation target for a named cell.
type namedTarget struct {
	obj  *Object
	name string
}

func (t namedTarget) owner() *host { return &t.obj.host }

func (t namedTarget) key() string { return t.name }

func (t namedTarget) assign(v any) { t.obj.Set(t.name, v) }
