package cell

import "fmt"

// Cell is a typed accessor for one cell of an Object.
//
// Example:
//
//	type Motor struct {
//	    *cell.Object
//	    Temperature cell.Cell[int]
//	    Status      cell.Cell[string]
//	}
//
//	obj := cell.NewObject("motor", "temperature", "status")
//	m := &Motor{
//	    Object:      obj,
//	    Temperature: cell.Of[int](obj, "temperature"),
//	    Status:      cell.Of[string](obj, "status"),
//	}
type Cell[T any] struct {
	obj  *Object
	name string
}

// Of returns the typed accessor for a cell of obj.
func Of[T any](obj *Object, name string) Cell[T] {
	obj.check("declare", name)
	return Cell[T]{obj: obj, name: name}
}

// Name returns the cell name.
func (c Cell[T]) Name() string {
	return c.name
}

// Object returns the owner of the cell.
func (c Cell[T]) Object() *Object {
	return c.obj
}

// Get returns the value and records the read in the active trace.
// An unset cell reads as the zero value.
func (c Cell[T]) Get() T {
	return c.cast("get", c.obj.Get(c.name))
}

// Peek returns the value without recording a read.
func (c Cell[T]) Peek() T {
	return c.cast("peek", c.obj.Peek(c.name))
}

// Set writes the cell. See Object.Set.
func (c Cell[T]) Set(v T) {
	c.obj.Set(c.name, v)
}

// Update writes fn applied to the current value. The read is not tracked.
func (c Cell[T]) Update(fn func(T) T) {
	c.Set(fn(c.Peek()))
}

// Calculate binds formula to the cell. See Object.Calculate.
func (c Cell[T]) Calculate(formula func() T) {
	c.obj.check("calculate", c.name)
	calculate(namedTarget{obj: c.obj, name: c.name}, func() any { return formula() })
}

// Observe registers fn for this cell. See Object.Observe.
func (c Cell[T]) Observe(pattern Pattern, fn ObserverFunc) *Observer {
	return c.obj.Observe(Name(c.name), pattern, fn)
}

// OnChange registers a typed callback for this cell. Keep the returned
// handle reachable for as long as fn should fire.
func (c Cell[T]) OnChange(pattern Pattern, fn func(newValue, oldValue T)) *Observer {
	return c.Observe(pattern, func(newValue, oldValue any, _ Owner, _ CellID) {
		fn(c.cast("observe", newValue), c.cast("observe", oldValue))
	})
}

// WithEquals sets the equality used to suppress no-op writes and returns c.
func (c Cell[T]) WithEquals(fn func(a, b T) bool) Cell[T] {
	c.obj.SetEquals(c.name, equalOf(fn))
	return c
}

func (c Cell[T]) cast(op string, v any) T {
	var zero T
	if v == nil {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		panic(&Error{
			Op:    op,
			Owner: c.obj.String(),
			Cell:  c.name,
			Err:   fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, v, zero),
		})
	}
	return t
}

// Class declares a set of cell names shared by the objects it creates.
//
// Example:
//
//	var dummy = cell.NewClass("dummy", "cell1", "cell2", "cell3", "cell4")
//	obj := dummy.New()
type Class struct {
	name  string
	cells []string
}

// NewClass declares a class with the given cells.
func NewClass(name string, cells ...string) *Class {
	cs := make([]string, len(cells))
	copy(cs, cells)
	return &Class{name: name, cells: cs}
}

// Name returns the class name, used as the label of its objects.
func (c *Class) Name() string {
	return c.name
}

// Cells returns the declared cell names.
func (c *Class) Cells() []string {
	out := make([]string, len(c.cells))
	copy(out, c.cells)
	return out
}

// New creates a closed object with the class's cells on the default runtime.
func (c *Class) New() *Object {
	return c.NewIn(Default())
}

// NewIn creates a closed object with the class's cells on rt.
func (c *Class) NewIn(rt *Runtime) *Object {
	return rt.NewObject(c.name, c.cells...)
}
