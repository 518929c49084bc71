package cell

import (
	"fmt"
	"strings"
)

// SliceCell is the cell name under which slice elements are registered.
// Observers and dependency edges of a Slice are keyed on it; the element
// index travels in the CellID.
const SliceCell = "[]"

// CellID identifies the cell that changed: a name for named cells, or an
// index (and length, for ranged writes) for slice elements.
type CellID struct {
	Name  string
	Index int
	Len   int
}

// IsSlice reports whether the id addresses slice elements.
func (id CellID) IsSlice() bool {
	return id.Name == SliceCell
}

// String returns the name, "[i]" or "[i:j]".
func (id CellID) String() string {
	if !id.IsSlice() {
		return id.Name
	}
	if id.Len > 1 {
		return fmt.Sprintf("[%d:%d]", id.Index, id.Index+id.Len)
	}
	return fmt.Sprintf("[%d]", id.Index)
}

// ObserverFunc is called with the new and old value of a changed cell, its
// owner and its identifier.
type ObserverFunc func(newValue, oldValue any, owner Owner, id CellID)

// Observer is the handle of an observer registration. Registrations only
// hold it weakly: keep the handle reachable for as long as the callback
// should fire.
type Observer struct {
	id uint64
	fn ObserverFunc
}

// NewObserver creates a handle for fn that can be attached to several cells
// and patterns with Watch.
func NewObserver(fn ObserverFunc) *Observer {
	return &Observer{id: nextID(), fn: fn}
}

// ID returns the unique identifier of the handle.
func (o *Observer) ID() uint64 {
	return o.id
}

// Spec selects the cells an observer applies to: either a single cell or an
// ordered collection of cells.
type Spec struct {
	names  []string
	single bool
}

// Name selects a single cell.
func Name(name string) Spec {
	return Spec{names: []string{name}, single: true}
}

// Names selects an ordered collection of cells.
func Names(names ...string) Spec {
	ns := make([]string, len(names))
	copy(ns, names)
	return Spec{names: ns}
}

// IsSingle reports whether the spec was built with Name.
func (s Spec) IsSingle() bool {
	return s.single
}

// Cells returns the selected cell names in order.
func (s Spec) Cells() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s Spec) String() string {
	if s.single && len(s.names) == 1 {
		return s.names[0]
	}
	return "[" + strings.Join(s.names, " ") + "]"
}

// UnobserveOption narrows what Unobserve removes.
type UnobserveOption func(*unobserveOptions)

type unobserveOptions struct {
	cells      []string
	hasCells   bool
	pattern    Pattern
	hasPattern bool
}

// InCells restricts Unobserve to the cells selected by spec.
// By default a handle is removed from every cell it is registered on.
func InCells(spec Spec) UnobserveOption {
	return func(o *unobserveOptions) {
		o.cells = spec.Cells()
		o.hasCells = true
	}
}

// WithPattern restricts Unobserve to registrations made with a pattern
// equal to p. By default registrations are removed whatever their pattern.
func WithPattern(p Pattern) UnobserveOption {
	return func(o *unobserveOptions) {
		o.pattern = p
		o.hasPattern = true
	}
}

func buildUnobserveOptions(opts []UnobserveOption) unobserveOptions {
	var o unobserveOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
