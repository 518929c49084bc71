package cell

import (
	"fmt"
	"sync"
	"sync/atomic"
	"weak"
)

// Owner is anything that owns cells: an *Object or a *Slice.
type Owner interface {
	// ID returns the owner's unique identifier.
	ID() uint64

	// Label returns the name the owner was created with.
	Label() string

	// Dependencies maps each source cell of the owner to the targets of the
	// live computations that re-run when it changes.
	Dependencies() map[string][]string

	cellHost() *host
}

// registration is one (pattern, handle) pair in the observer registry.
type registration struct {
	pattern Pattern
	handle  weak.Pointer[Observer]

	// removed is set by Unobserve so that a notification pass that already
	// took its snapshot skips the registration.
	removed atomic.Bool
}

// host holds the observer registry and dependency graph of one owner.
type host struct {
	id    uint64
	label string
	rt    *Runtime
	self  Owner

	mu        sync.Mutex
	observers map[string][]*registration
	deps      map[string][]weak.Pointer[computation]

	// comps holds the computations targeting this owner, by target slot.
	// It is the only strong reference to them: dependency edges elsewhere
	// are weak, so a collected owner stops being recomputed.
	comps map[string]*computation
}

func (h *host) init(rt *Runtime, label string, self Owner) {
	if rt == nil {
		rt = Default()
	}
	h.id = nextID()
	h.label = label
	h.rt = rt
	h.self = self
}

// ID implements Owner.
func (h *host) ID() uint64 {
	return h.id
}

// Label implements Owner.
func (h *host) Label() string {
	return h.label
}

// Runtime returns the runtime the owner was created with.
func (h *host) Runtime() *Runtime {
	return h.rt
}

func (h *host) String() string {
	return fmt.Sprintf("%s#%d", h.label, h.id)
}

func (h *host) cellHost() *host {
	return h
}

// observe registers o under every cell in cells.
func (h *host) observe(cells []string, pattern Pattern, o *Observer) {
	pattern = orAny(pattern)
	wp := weak.Make(o)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.observers == nil {
		h.observers = make(map[string][]*registration)
	}
	for _, c := range cells {
		h.observers[c] = append(h.observers[c], &registration{pattern: pattern, handle: wp})
	}
}

// unobserve removes o's registrations and returns how many were removed.
func (h *host) unobserve(o *Observer, opts unobserveOptions) int {
	if o == nil {
		return 0
	}
	wp := weak.Make(o)

	h.mu.Lock()
	defer h.mu.Unlock()

	cells := opts.cells
	if !opts.hasCells {
		cells = make([]string, 0, len(h.observers))
		for c := range h.observers {
			cells = append(cells, c)
		}
	}

	removed := 0
	for _, c := range cells {
		regs := h.observers[c]
		if len(regs) == 0 {
			continue
		}
		kept := make([]*registration, 0, len(regs))
		for _, r := range regs {
			if r.handle == wp && (!opts.hasPattern || samePattern(r.pattern, opts.pattern)) {
				r.removed.Store(true)
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(h.observers, c)
		} else {
			h.observers[c] = kept
		}
	}
	return removed
}

// notify prunes expired registrations of cell and calls the matching
// observers in registration order.
func (h *host) notify(cell string, id CellID, newValue, oldValue any) {
	h.mu.Lock()
	regs := h.observers[cell]
	if len(regs) == 0 {
		h.mu.Unlock()
		return
	}
	live := make([]*registration, 0, len(regs))
	for _, r := range regs {
		if r.handle.Value() != nil {
			live = append(live, r)
		}
	}
	pruned := len(regs) - len(live)
	if pruned > 0 {
		if len(live) == 0 {
			delete(h.observers, cell)
		} else {
			h.observers[cell] = live
		}
	}
	h.mu.Unlock()

	if pruned > 0 {
		h.rt.onPrune(h, cell, pruned, 0)
	}

	for _, r := range live {
		if r.removed.Load() || !r.pattern.Matches(newValue) {
			continue
		}
		// The handle may have died since the prune above.
		o := r.handle.Value()
		if o == nil {
			continue
		}
		h.rt.onNotify(h, id, o)
		o.fn(newValue, oldValue, h.self, id)
	}
}

// addEdge registers c as a dependent of cell. An edge that is already
// present is not added twice.
func (h *host) addEdge(cell string, c *computation) {
	wp := weak.Make(c)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.deps == nil {
		h.deps = make(map[string][]weak.Pointer[computation])
	}
	for _, existing := range h.deps[cell] {
		if existing == wp {
			return
		}
	}
	h.deps[cell] = append(h.deps[cell], wp)
}

// propagate prunes dead edges of cell and re-runs the live computations.
func (h *host) propagate(cell string) {
	h.mu.Lock()
	edges := h.deps[cell]
	if len(edges) == 0 {
		h.mu.Unlock()
		return
	}
	kept := make([]weak.Pointer[computation], 0, len(edges))
	live := make([]*computation, 0, len(edges))
	for _, wp := range edges {
		c := wp.Value()
		if c == nil || c.retired.Load() {
			continue
		}
		kept = append(kept, wp)
		live = append(live, c)
	}
	pruned := len(edges) - len(kept)
	if pruned > 0 {
		if len(kept) == 0 {
			delete(h.deps, cell)
		} else {
			h.deps[cell] = kept
		}
	}
	h.mu.Unlock()

	if pruned > 0 {
		h.rt.onPrune(h, cell, 0, pruned)
	}

	for _, c := range live {
		if c.retired.Load() {
			continue
		}
		c.run(false)
	}
}

// changed runs the notification sequence for a cell whose value changed:
// observers first, then dependent computations.
func (h *host) changed(cell string, id CellID, newValue, oldValue any) {
	tc, gid := h.rt.enter(h, id.String())
	defer h.rt.leave(tc, gid)

	h.rt.onWrite(h, id, oldValue, newValue, true)
	h.notify(cell, id, newValue, oldValue)
	h.propagate(cell)
}

// bind installs c as the computation of its target slot, retiring the one
// it replaces.
func (h *host) bind(c *computation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.comps == nil {
		h.comps = make(map[string]*computation)
	}
	key := c.target.key()
	if old := h.comps[key]; old != nil {
		old.retired.Store(true)
	}
	h.comps[key] = c
}

// Dependencies implements Owner.
func (h *host) Dependencies() map[string][]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string][]string, len(h.deps))
	for cell, edges := range h.deps {
		var targets []string
		for _, wp := range edges {
			if c := wp.Value(); c != nil && !c.retired.Load() {
				targets = append(targets, c.describe())
			}
		}
		if len(targets) > 0 {
			out[cell] = targets
		}
	}
	return out
}
