package cell

import (
	"errors"
	"runtime"
	"testing"
	"weak"
)

func TestCalculateEvaluatesImmediately(t *testing.T) {
	d := newDummy()
	if d.cell2.Get() != 50 {
		t.Errorf("expected cell2 = 50, got %d", d.cell2.Get())
	}
	if d.cell3.Get() != "medium" {
		t.Errorf("expected cell3 = medium, got %q", d.cell3.Get())
	}
}

func TestPropagation(t *testing.T) {
	d := newDummy()

	d.cell1.Set(8)
	if d.cell2.Get() != 80 {
		t.Errorf("expected cell2 = 80, got %d", d.cell2.Get())
	}
	if d.cell3.Get() != "high" {
		t.Errorf("expected cell3 = high, got %q", d.cell3.Get())
	}

	d.cell1.Set(1)
	if d.cell2.Get() != 10 || d.cell3.Get() != "low" {
		t.Errorf("expected 10/low, got %d/%q", d.cell2.Get(), d.cell3.Get())
	}
}

func TestObserverSeesComputedChange(t *testing.T) {
	d := newDummy()
	var c counter
	h := d.Observe(Name("cell3"), Equals("high"), c.fn)

	d.cell1.Set(6)
	if c.calls != 0 {
		t.Fatalf("medium should not match, got %d calls", c.calls)
	}
	d.cell1.Set(9)
	if c.calls != 1 || c.oldValue != "medium" || c.newValue != "high" {
		t.Errorf("expected one medium -> high call, got %d calls (%v -> %v)", c.calls, c.oldValue, c.newValue)
	}
	_ = h
}

// A dependent whose map key and equality follow one of its own cells keeps
// being recomputed as that key changes.
func TestValueKeyedDependentKeepsUpdating(t *testing.T) {
	d := newDummy()
	dependent := newDummy()
	key := func(x *dummy) int { return x.cell1.Peek() }

	dependent.cell1.Calculate(func() int { return d.cell1.Get() * 100 })
	byKey := map[int]*dummy{key(dependent): dependent}

	var c counter
	h := dependent.Observe(Name("cell1"), nil, c.fn)

	for i, tt := range []struct{ in, want int }{{5, 500}, {2, 200}, {3, 300}} {
		d.cell1.Set(tt.in)
		if got := dependent.cell1.Get(); got != tt.want {
			t.Fatalf("step %d: expected cell1 = %d, got %d", i, tt.want, got)
		}
		if key(dependent) != tt.want {
			t.Errorf("step %d: key should follow the cell, got %d", i, key(dependent))
		}
		if got := dependent.cell2.Get(); got != tt.want*10 {
			t.Errorf("step %d: expected cell2 = %d, got %d", i, tt.want*10, got)
		}
		byKey[key(dependent)] = dependent
	}

	if c.calls != 2 {
		t.Errorf("expected 2 notifications after the key changed, got %d", c.calls)
	}
	for _, k := range []int{500, 200, 300} {
		if byKey[k] != dependent {
			t.Errorf("expected the dependent under key %d", k)
		}
	}
	_ = h
}

func TestBranchingFormula(t *testing.T) {
	obj := NewObject("branch")
	guard := Of[string](obj, "guard")
	x := Of[int](obj, "x")
	y := Of[int](obj, "y")
	out := Of[int](obj, "out")

	guard.Set("medium")
	x.Set(1)
	y.Set(1)
	out.Calculate(func() int {
		if guard.Get() == "medium" {
			return y.Get() * 10
		}
		return x.Get() * 10
	})
	if out.Get() != 10 {
		t.Fatalf("expected 10, got %d", out.Get())
	}

	y.Set(10)
	if out.Get() != 100 {
		t.Errorf("expected 100 after y = 10, got %d", out.Get())
	}

	// Switching branches makes x a dependency.
	guard.Set("out_of_range")
	x.Set(9)
	if out.Get() != 90 {
		t.Errorf("expected 90 after x = 9, got %d", out.Get())
	}

	// y is no longer read; its stale edge re-runs the formula but the result
	// is unchanged.
	y.Set(3)
	if out.Get() != 90 {
		t.Errorf("expected 90 after y = 3, got %d", out.Get())
	}
}

func TestEdgesAreDeduplicated(t *testing.T) {
	obj := NewObject("dedupe")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")

	a.Set(1)
	runs := 0
	b.Calculate(func() int {
		runs++
		return a.Get() + a.Get() + a.Get()
	})

	for i := 2; i < 5; i++ {
		a.Set(i)
	}
	if runs != 4 {
		t.Errorf("expected 4 runs, got %d", runs)
	}
	if deps := obj.Dependencies()["a"]; len(deps) != 1 {
		t.Errorf("expected a single edge from a, got %v", deps)
	}
}

func TestRebindRetiresPreviousFormula(t *testing.T) {
	obj := NewObject("rebind")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")
	c := Of[int](obj, "c")

	a.Set(1)
	b.Set(1)
	c.Calculate(func() int { return a.Get() + 100 })
	c.Calculate(func() int { return b.Get() + 200 })

	a.Set(5)
	if c.Get() != 201 {
		t.Errorf("retired formula overwrote c: got %d", c.Get())
	}
	b.Set(5)
	if c.Get() != 205 {
		t.Errorf("expected 205, got %d", c.Get())
	}
	if deps := obj.Dependencies()["a"]; len(deps) != 0 {
		t.Errorf("retired formula should not be listed as a dependent, got %v", deps)
	}
}

func TestCrossObjectDependency(t *testing.T) {
	src := NewObject("src")
	dst := NewObject("dst")
	in := Of[int](src, "in")
	out := Of[int](dst, "out")

	in.Set(2)
	out.Calculate(func() int { return in.Get() * in.Get() })
	in.Set(7)

	if out.Get() != 49 {
		t.Errorf("expected 49, got %d", out.Get())
	}
	deps := src.Dependencies()
	if len(deps["in"]) != 1 || deps["in"][0] != dst.String()+".out" {
		t.Errorf("unexpected dependencies %v", deps)
	}
}

func TestCollectedTargetStopsRecomputing(t *testing.T) {
	src := NewObject("src")
	in := Of[int](src, "in")
	in.Set(1)

	runs := 0
	func() {
		dst := NewObject("dst")
		Of[int](dst, "out").Calculate(func() int {
			runs++
			return in.Get()
		})
	}()
	if runs != 1 {
		t.Fatalf("expected the initial run, got %d", runs)
	}

	runtime.GC()
	runtime.GC()

	in.Set(2)
	if runs != 1 {
		t.Errorf("collected target should not be recomputed, got %d runs", runs)
	}
	if deps := src.Dependencies(); len(deps) != 0 {
		t.Errorf("expected dead edges to be pruned, got %v", deps)
	}
}

func TestDependentKeepsTargetAlive(t *testing.T) {
	src := NewObject("src")
	in := Of[int](src, "in")
	in.Set(1)

	dst := NewObject("dst")
	wp := weak.Make(dst)
	out := Of[int](dst, "out")
	out.Calculate(func() int { return in.Get() + 1 })

	runtime.GC()
	if wp.Value() == nil {
		t.Fatal("referenced target was collected")
	}
	in.Set(4)
	if out.Get() != 5 {
		t.Errorf("expected 5, got %d", out.Get())
	}
	runtime.KeepAlive(dst)
}

func TestDepthLimit(t *testing.T) {
	rt := NewRuntime(WithMaxDepth(10))
	obj := rt.NewObject("cycle")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")

	a.Set(0)
	b.Calculate(func() int { return a.Get() + 1 })
	// The edge b -> a only exists once this first run has finished, so
	// binding the formula does not loop yet.
	if err := Catch(func() { a.Calculate(func() int { return b.Get() + 1 }) }); err != nil {
		t.Fatalf("binding the cycle: %v", err)
	}

	err := Catch(func() { a.Set(100) })
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected ErrDepthExceeded, got %v", err)
	}
	var cellErr *Error
	if !errors.As(err, &cellErr) || cellErr.Op != "set" {
		t.Errorf("expected a set *Error, got %#v", err)
	}
	if tc := lookupTrackingContext(); tc != nil {
		t.Errorf("tracking state leaked after unwinding: %+v", tc)
	}
}

func TestFormulaPanicRestoresState(t *testing.T) {
	obj := NewObject("panicky")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")
	a.Set(1)
	b.Calculate(func() int {
		if a.Get() < 0 {
			panic("negative")
		}
		return a.Get()
	})

	err := Catch(func() { a.Set(-1) })
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "negative" {
		t.Fatalf("expected PanicError(negative), got %v", err)
	}
	if tc := lookupTrackingContext(); tc != nil {
		t.Errorf("tracking state leaked after panic: %+v", tc)
	}

	// The graph keeps working afterwards.
	a.Set(3)
	if b.Get() != 3 {
		t.Errorf("expected 3, got %d", b.Get())
	}
}

func TestTrace(t *testing.T) {
	obj := NewObject("traced")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")

	reads := Trace(func() {
		_ = a.Get() + b.Get()
		_ = a.Peek()
	})
	if len(reads) != 2 {
		t.Fatalf("expected 2 reads, got %v", reads)
	}
	if reads[0].Cell != "a" || reads[1].Cell != "b" || reads[0].Owner != Owner(obj) {
		t.Errorf("unexpected reads %v", reads)
	}
	if tc := lookupTrackingContext(); tc != nil {
		t.Error("Trace left a tracking context behind")
	}
}

func TestNestedTraceIsolation(t *testing.T) {
	obj := NewObject("nested")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")
	c := Of[int](obj, "c")

	var inner []Read
	outer := Trace(func() {
		a.Get()
		inner = Trace(func() { b.Get() })
		c.Get()
	})

	if len(inner) != 1 || inner[0].Cell != "b" {
		t.Errorf("inner trace should only see b, got %v", inner)
	}
	if len(outer) != 2 || outer[0].Cell != "a" || outer[1].Cell != "c" {
		t.Errorf("outer trace should see a and c, got %v", outer)
	}
}

func TestTraceRestoredOnPanic(t *testing.T) {
	obj := NewObject("nested")
	a := Of[int](obj, "a")

	outer := Trace(func() {
		_ = Catch(func() {
			Trace(func() { panic("boom") })
		})
		a.Get()
	})
	if len(outer) != 1 || outer[0].Cell != "a" {
		t.Errorf("outer trace should survive an inner panic, got %v", outer)
	}
}

func TestUntracked(t *testing.T) {
	obj := NewObject("untracked")
	price := Of[int](obj, "price")
	factor := Of[int](obj, "factor")
	total := Of[int](obj, "total")

	price.Set(2)
	factor.Set(3)
	total.Calculate(func() int {
		var scale int
		Untracked(func() { scale = factor.Get() })
		return price.Get() * scale
	})
	if total.Get() != 6 {
		t.Fatalf("expected 6, got %d", total.Get())
	}

	factor.Set(10)
	if total.Get() != 6 {
		t.Errorf("untracked read should not create a dependency, got %d", total.Get())
	}
	price.Set(5)
	if total.Get() != 50 {
		t.Errorf("expected 50, got %d", total.Get())
	}
}

func TestReadsOutsideFormulaRecordNothing(t *testing.T) {
	obj := NewObject("plain")
	a := Of[int](obj, "a")
	a.Set(1)
	_ = a.Get()
	if deps := obj.Dependencies(); len(deps) != 0 {
		t.Errorf("expected no edges, got %v", deps)
	}
}
