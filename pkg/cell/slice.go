package cell

import (
	"fmt"
	"sync"
)

// Slice is an observable sequence. Every element behaves like a cell keyed
// by its index: reads are traced, writes of equal values are suppressed and
// observers receive the index in the CellID.
//
// Observers and dependency edges are registered under SliceCell, so a
// formula that read any element is recomputed when any element changes.
type Slice[T any] struct {
	host

	mu    sync.RWMutex
	items []T
	equal func(a, b T) bool
}

// NewSlice creates a slice on the default runtime.
func NewSlice[T any](label string, items ...T) *Slice[T] {
	return NewSliceIn(Default(), label, items...)
}

// NewSliceIn creates a slice owned by rt.
func NewSliceIn[T any](rt *Runtime, label string, items ...T) *Slice[T] {
	if label == "" {
		label = "slice"
	}
	s := &Slice[T]{items: make([]T, len(items))}
	copy(s.items, items)
	s.host.init(rt, label, s)
	return s
}

// WithEquals sets the element equality used to suppress no-op writes.
func (s *Slice[T]) WithEquals(fn func(a, b T) bool) *Slice[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equal = fn
	return s
}

// equality returns the element equality. Callers hold s.mu and must
// release it before calling the result.
func (s *Slice[T]) equality() func(a, b T) bool {
	if s.equal != nil {
		return s.equal
	}
	return func(a, b T) bool { return Equal(any(a), any(b)) }
}

func (s *Slice[T]) outOfRange(op string, i, n int) *Error {
	return &Error{
		Op:    op,
		Owner: s.String(),
		Cell:  fmt.Sprintf("[%d]", i),
		Err:   fmt.Errorf("%w: length %d", ErrIndexOutOfRange, n),
	}
}

// cast converts a computed value to T. nil becomes the zero value.
func (s *Slice[T]) cast(cell string, v any) T {
	x, ok := v.(T)
	if !ok && v != nil {
		panic(s.mismatch(cell, v, x))
	}
	return x
}

func (s *Slice[T]) mismatch(cell string, have, want any) *Error {
	return &Error{
		Op:    "calculate",
		Owner: s.String(),
		Cell:  cell,
		Err:   fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, have, want),
	}
}

// Len returns the number of elements. The read is traced.
func (s *Slice[T]) Len() int {
	recordRead(&s.host, SliceCell)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// At returns element i and records the read in the active trace.
func (s *Slice[T]) At(i int) T {
	recordRead(&s.host, SliceCell)
	return s.Peek(i)
}

// Peek returns element i without recording a read.
func (s *Slice[T]) Peek(i int) T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.items) {
		panic(s.outOfRange("get", i, len(s.items)))
	}
	return s.items[i]
}

// Range returns a copy of elements [start, end) and records the read.
func (s *Slice[T]) Range(start, end int) []T {
	recordRead(&s.host, SliceCell)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if start < 0 || end > len(s.items) || start > end {
		panic(s.outOfRange("range", start, len(s.items)))
	}
	out := make([]T, end-start)
	copy(out, s.items[start:end])
	return out
}

// Snapshot returns a copy of all elements without recording a read.
func (s *Slice[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Set writes element i. Writing an equal value does nothing; otherwise
// observers are called with CellID{Name: SliceCell, Index: i, Len: 1} and
// dependents recomputed.
func (s *Slice[T]) Set(i int, v T) {
	s.mu.RLock()
	if i < 0 || i >= len(s.items) {
		n := len(s.items)
		s.mu.RUnlock()
		panic(s.outOfRange("set", i, n))
	}
	old := s.items[i]
	eq := s.equality()
	s.mu.RUnlock()

	id := CellID{Name: SliceCell, Index: i, Len: 1}
	if eq(old, v) {
		s.rt.onWrite(&s.host, id, old, v, false)
		return
	}

	s.mu.Lock()
	s.items[i] = v
	s.mu.Unlock()

	s.changed(SliceCell, id, v, old)
}

// SetRange overwrites the elements starting at start with vals as a single
// write: observers are called once with the old and new elements as []T.
// Nothing happens if every element is unchanged.
func (s *Slice[T]) SetRange(start int, vals []T) {
	s.mu.RLock()
	if start < 0 || start+len(vals) > len(s.items) {
		n := len(s.items)
		s.mu.RUnlock()
		panic(s.outOfRange("set", start, n))
	}
	old := make([]T, len(vals))
	copy(old, s.items[start:start+len(vals)])
	eq := s.equality()
	s.mu.RUnlock()

	id := CellID{Name: SliceCell, Index: start, Len: len(vals)}
	same := true
	for i := range vals {
		if !eq(old[i], vals[i]) {
			same = false
			break
		}
	}
	if same {
		s.rt.onWrite(&s.host, id, old, vals, false)
		return
	}
	newVals := make([]T, len(vals))
	copy(newVals, vals)

	s.mu.Lock()
	copy(s.items[start:], newVals)
	s.mu.Unlock()

	s.changed(SliceCell, id, newVals, old)
}

// Append adds v at the end. Observers see a nil old value at the new index.
func (s *Slice[T]) Append(v T) {
	s.mu.Lock()
	i := len(s.items)
	s.items = append(s.items, v)
	s.mu.Unlock()

	s.changed(SliceCell, CellID{Name: SliceCell, Index: i, Len: 1}, v, nil)
}

// Observe registers fn for every element write. A nil pattern matches every
// value.
func (s *Slice[T]) Observe(pattern Pattern, fn ObserverFunc) *Observer {
	return s.Watch(NewObserver(fn), pattern)
}

// Watch registers an existing handle for element writes and returns it.
func (s *Slice[T]) Watch(h *Observer, pattern Pattern) *Observer {
	s.observe([]string{SliceCell}, pattern, h)
	return h
}

// Unobserve removes the registrations of h and returns how many were
// removed. WithPattern narrows the removal.
func (s *Slice[T]) Unobserve(h *Observer, opts ...UnobserveOption) int {
	o := buildUnobserveOptions(opts)
	o.cells, o.hasCells = []string{SliceCell}, true
	return s.unobserve(h, o)
}

// Calculate binds formula to element i. See Object.Calculate.
func (s *Slice[T]) Calculate(i int, formula func() T) {
	calculate(indexTarget[T]{s: s, i: i}, func() any { return formula() })
}

// CalculateRange binds formula to the elements starting at start; each
// result is written with SetRange.
func (s *Slice[T]) CalculateRange(start int, formula func() []T) {
	calculate(rangeTarget[T]{s: s, start: start}, func() any { return formula() })
}

// indexTarget is the computation target for one element.
type indexTarget[T any] struct {
	s *Slice[T]
	i int
}

func (t indexTarget[T]) owner() *host { return &t.s.host }

func (t indexTarget[T]) key() string { return fmt.Sprintf("[%d]", t.i) }

func (t indexTarget[T]) assign(v any) {
	t.s.Set(t.i, t.s.cast(t.key(), v))
}

// rangeTarget is the computation target for a run of elements.
type rangeTarget[T any] struct {
	s     *Slice[T]
	start int
}

func (t rangeTarget[T]) owner() *host { return &t.s.host }

func (t rangeTarget[T]) key() string { return fmt.Sprintf("[%d:]", t.start) }

func (t rangeTarget[T]) assign(v any) {
	xs, ok := v.([]T)
	if !ok && v != nil {
		panic(t.s.mismatch(t.key(), v, xs))
	}
	t.s.SetRange(t.start, xs)
}
