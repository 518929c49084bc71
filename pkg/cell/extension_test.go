package cell

import (
	"context"
	"testing"
)

// recorder logs every hook it sees.
type recorder struct {
	BaseExtension
	order int
	log   *[]string

	writes     int
	suppressed int
	notifies   int
	runs       []*Run
	panics     int
}

func newRecorder(name string, order int, log *[]string) *recorder {
	return &recorder{BaseExtension: NewBaseExtension(name), order: order, log: log}
}

func (r *recorder) Order() int { return r.order }

func (r *recorder) OnWrite(w *Write) {
	if w.Changed {
		r.writes++
	} else {
		r.suppressed++
	}
}

func (r *recorder) OnNotify(n *Notify) { r.notifies++ }

func (r *recorder) WrapRun(ctx context.Context, run *Run, next func(ctx context.Context)) {
	*r.log = append(*r.log, r.Name()+" before")
	next(ctx)
	*r.log = append(*r.log, r.Name()+" after")
	r.runs = append(r.runs, run)
}

func (r *recorder) OnPanic(run *Run, recovered any) { r.panics++ }

func TestExtensionOrder(t *testing.T) {
	var log []string
	inner := newRecorder("inner", 20, &log)
	outer := newRecorder("outer", 10, &log)
	rt := NewRuntime(WithExtensions(inner, outer))

	exts := rt.Extensions()
	if len(exts) != 2 || exts[0].Name() != "outer" || exts[1].Name() != "inner" {
		t.Fatalf("extensions not sorted by order: %v", exts)
	}

	obj := rt.NewObject("ordered")
	a := Of[int](obj, "a")
	a.Set(1)
	Of[int](obj, "b").Calculate(func() int { return a.Get() })

	want := []string{"outer before", "inner before", "inner after", "outer after"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("step %d: expected %q, got %q", i, want[i], log[i])
		}
	}
}

func TestExtensionSeesWritesAndRuns(t *testing.T) {
	var log []string
	rec := newRecorder("rec", 0, &log)
	rt := NewRuntime(WithExtensions(rec))

	obj := rt.NewObject("watched")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")
	a.Set(1)
	b.Calculate(func() int { return a.Get() * 2 })
	h := a.Observe(nil, func(any, any, Owner, CellID) {})

	a.Set(1)
	a.Set(2)

	// a=1, b=2, a=2, b=4
	if rec.writes != 4 {
		t.Errorf("expected 4 changed writes, got %d", rec.writes)
	}
	if rec.suppressed != 1 {
		t.Errorf("expected 1 suppressed write, got %d", rec.suppressed)
	}
	if rec.notifies != 1 {
		t.Errorf("expected 1 notification, got %d", rec.notifies)
	}
	if len(rec.runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(rec.runs))
	}
	first, second := rec.runs[0], rec.runs[1]
	if !first.Initial || second.Initial {
		t.Errorf("expected an initial run then a recomputation")
	}
	if first.ID != second.ID || second.Target != "b" {
		t.Errorf("unexpected run %+v", second)
	}
	if second.Depth != 1 {
		t.Errorf("recomputation should run inside the write cascade, got depth %d", second.Depth)
	}
	if len(second.Reads) != 1 || second.Reads[0].Cell != "a" {
		t.Errorf("unexpected reads %v", second.Reads)
	}
	_ = h
}

func TestExtensionPanicReportedOnce(t *testing.T) {
	var log []string
	rec := newRecorder("rec", 0, &log)
	rt := NewRuntime(WithExtensions(rec))

	obj := rt.NewObject("chain")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")
	c := Of[int](obj, "c")
	a.Set(1)
	b.Calculate(func() int { return a.Get() + 1 })
	c.Calculate(func() int {
		if b.Get() > 10 {
			panic("too big")
		}
		return b.Get()
	})

	if err := Catch(func() { a.Set(20) }); err == nil {
		t.Fatal("expected the panic to surface")
	}
	if rec.panics != 1 {
		t.Errorf("expected the panic to be reported once, got %d", rec.panics)
	}

	if err := Catch(func() { a.Set(30) }); err == nil {
		t.Fatal("expected the panic to surface again")
	}
	if rec.panics != 2 {
		t.Errorf("a new cascade should report again, got %d", rec.panics)
	}
}

func TestWithContextReachesExtensions(t *testing.T) {
	type key struct{}
	var seen any
	ext := &ctxProbe{BaseExtension: NewBaseExtension("probe"), seen: &seen, key: key{}}
	rt := NewRuntime(WithExtensions(ext))

	obj := rt.NewObject("ctx")
	a := Of[int](obj, "a")
	a.Set(1)
	Of[int](obj, "b").Calculate(func() int { return a.Get() })

	ctx := context.WithValue(context.Background(), key{}, "request")
	WithContext(ctx, func() { a.Set(2) })

	if seen != "request" {
		t.Errorf("expected the request context, got %v", seen)
	}
}

type ctxProbe struct {
	BaseExtension
	seen *any
	key  any
}

func (p *ctxProbe) WrapRun(ctx context.Context, r *Run, next func(ctx context.Context)) {
	*p.seen = ctx.Value(p.key)
	next(ctx)
}

func TestCatch(t *testing.T) {
	if err := Catch(func() {}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	err := Catch(func() { panic(&Error{Op: "get", Cell: "x", Err: ErrUnknownCell}) })
	if _, ok := err.(*Error); !ok {
		t.Errorf("expected *Error to pass through, got %T", err)
	}

	err = Catch(func() { panic("plain") })
	pe, ok := err.(*PanicError)
	if !ok || pe.Value != "plain" || len(pe.Stack) == 0 {
		t.Errorf("expected *PanicError with stack, got %#v", err)
	}
}

type runKey struct{}

// untrackedWrapper calls Untracked before next and tags ctx with the target
// of the run, recording the tag each nested run received from its parent.
type untrackedWrapper struct {
	BaseExtension
	parents map[string]any
}

func (u *untrackedWrapper) WrapRun(ctx context.Context, r *Run, next func(ctx context.Context)) {
	u.parents[r.Target] = ctx.Value(runKey{})
	Untracked(func() {})
	next(context.WithValue(ctx, runKey{}, r.Target))
}

func TestWrapRunContextSurvivesUntracked(t *testing.T) {
	ext := &untrackedWrapper{BaseExtension: NewBaseExtension("untracked"), parents: map[string]any{}}
	rt := NewRuntime(WithExtensions(ext))

	obj := rt.NewObject("chain")
	a := Of[int](obj, "a")
	b := Of[int](obj, "b")
	a.Set(1)
	Of[int](obj, "c").Calculate(func() int { return b.Get() + 1 })

	b.Calculate(func() int { return a.Get() * 10 })

	if got := ext.parents["c"]; got != "b" {
		t.Errorf("nested run should inherit the context of b's run, got %v", got)
	}
	if lookupTrackingContext() != nil {
		t.Error("tracking context should be released after the run")
	}
}
