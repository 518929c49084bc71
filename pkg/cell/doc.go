// Package cell provides reactive, dependency-tracked attributes for Go values.
//
// A cell is a named value owned by an Object. Writing a cell notifies the
// observers registered on it and recomputes every cell whose formula read it.
// Dependencies are discovered at runtime: a formula simply reads the cells it
// needs and the read trace captured during its evaluation becomes its
// dependency set.
//
// # Core Types
//
// Object owns a set of cells:
//
//	motor := cell.NewObject("motor", "temperature", "status")
//	motor.Set("temperature", 50)
//	t := motor.Get("temperature") // tracked read
//
// Cell[T] is a typed accessor for one cell of an Object:
//
//	temperature := cell.Of[int](motor, "temperature")
//	status := cell.Of[string](motor, "status")
//	status.Calculate(func() string {
//	    if temperature.Get() < 100 {
//	        return "on"
//	    }
//	    return "off"
//	})
//	temperature.Set(110) // status is now "off"
//
// Slice[T] is an observable sequence whose elements behave like cells keyed
// by index:
//
//	ary := cell.NewSlice("ary", 1, 2, 3)
//	ary.Calculate(2, func() int { return cell1.Get() + 1 })
//
// # Observers
//
// Observers are registered per cell with an optional Pattern:
//
//	h := motor.Observe(cell.Name("temperature"), cell.Between(100, 1000),
//	    func(newValue, oldValue any, owner cell.Owner, id cell.CellID) {
//	        fmt.Println("BOILING!")
//	    })
//
// Registrations hold their *Observer weakly: once the caller drops every
// reference to h the registration expires and is pruned on the next
// notification pass. Unobserve removes registrations explicitly.
//
// # Propagation
//
// Propagation is synchronous. A write returns only after every observer has
// run and every dependent computation has been re-evaluated, recursively.
// Observers of a cell always run before its dependents are recomputed.
// Writing a value equal to the current one does nothing.
//
// There is no cycle detection unless the Runtime is created with
// WithMaxDepth; a cyclic graph recurses until the stack is exhausted.
//
// # Thread Safety
//
// Stores and registries are guarded by per-owner locks that are never held
// while formulas or callbacks run. The read trace is per goroutine. Writers
// whose cascades touch the same cells must be serialized by the caller.
package cell
