package cell

import (
	"context"
	"runtime"
	"sync"
)

// Read is one cell read captured by a trace.
type Read struct {
	Owner Owner
	// Cell is the cell name, or SliceCell for slice elements.
	Cell string
}

// frame is the recording context of one formula evaluation.
type frame struct {
	reads []read
}

// read is the internal form of Read, keyed on the owner's registry.
type read struct {
	h    *host
	cell string
}

// trackingContext holds the reactive state of one goroutine.
type trackingContext struct {
	// current is the frame recording reads, nil when not tracking.
	current *frame

	// depth is the nesting level of the cascade currently running.
	depth int

	// ctx is the parent context handed to extensions for the next run.
	ctx context.Context

	// unwinding is set once a panic has been reported to extensions, so
	// enclosing runs do not report it again.
	unwinding bool

	// pins counts computation runs holding on to this context.
	pins int
}

// idle reports whether the context carries no state and can be dropped.
func (tc *trackingContext) idle() bool {
	return tc.current == nil && tc.depth == 0 && tc.ctx == nil && tc.pins == 0
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// getGoroutineID returns the ID of the current goroutine, parsed from the
// header of its stack trace ("goroutine <id> [...").
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ { // skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating it on first use.
func getTrackingContext() (*trackingContext, uint64) {
	gid := getGoroutineID()
	if tc, ok := trackingContexts.Load(gid); ok {
		return tc.(*trackingContext), gid
	}
	tc := &trackingContext{}
	trackingContexts.Store(gid, tc)
	return tc, gid
}

// lookupTrackingContext returns the current goroutine's context without
// creating one.
func lookupTrackingContext() *trackingContext {
	if tc, ok := trackingContexts.Load(getGoroutineID()); ok {
		return tc.(*trackingContext)
	}
	return nil
}

// releaseTrackingContext drops the goroutine's context once it is idle so
// that finished goroutines do not leak entries.
func releaseTrackingContext(tc *trackingContext, gid uint64) {
	if tc.idle() {
		trackingContexts.Delete(gid)
	}
}

// recordRead appends (h, cell) to the active frame, if any.
func recordRead(h *host, cell string) {
	tc := lookupTrackingContext()
	if tc == nil || tc.current == nil {
		return
	}
	tc.current.reads = append(tc.current.reads, read{h: h, cell: cell})
}

// trace runs fn inside a fresh frame and returns the reads it captured.
// The previous frame is restored on every exit path, including panics, so an
// evaluation started inside another one never corrupts the outer trace.
func trace(fn func()) []read {
	tc, gid := getTrackingContext()
	f := &frame{}
	prev := tc.current
	tc.current = f
	defer func() {
		tc.current = prev
		releaseTrackingContext(tc, gid)
	}()

	fn()
	return f.reads
}

// Trace runs fn and returns every cell read it performed, in order.
//
// Example:
//
//	reads := cell.Trace(func() {
//	    _ = a.Get() + b.Get()
//	})
//	// reads: [{a-owner a} {b-owner b}]
func Trace(fn func()) []Read {
	reads := trace(fn)
	out := make([]Read, len(reads))
	for i, r := range reads {
		out[i] = Read{Owner: r.h.self, Cell: r.cell}
	}
	return out
}

// Untracked runs fn without recording its reads in the active trace.
// This is useful inside a formula that needs a value without depending on it.
//
// Example:
//
//	total.Calculate(func() int {
//	    var scale int
//	    cell.Untracked(func() { scale = factor.Get() })
//	    return price.Get() * scale
//	})
func Untracked(fn func()) {
	tc, gid := getTrackingContext()
	prev := tc.current
	tc.current = nil
	defer func() {
		tc.current = prev
		releaseTrackingContext(tc, gid)
	}()
	fn()
}

// WithContext runs fn with ctx as the parent context handed to extensions
// for every computation run in the cascades fn triggers. Tracing extensions
// use it to attach spans to an incoming request.
func WithContext(ctx context.Context, fn func()) {
	tc, gid := getTrackingContext()
	prev := tc.ctx
	tc.ctx = ctx
	defer func() {
		tc.ctx = prev
		releaseTrackingContext(tc, gid)
	}()
	fn()
}

// currentContext returns the context installed by WithContext or by an
// enclosing run, falling back to context.Background.
func currentContext(tc *trackingContext) context.Context {
	if tc.ctx != nil {
		return tc.ctx
	}
	return context.Background()
}
