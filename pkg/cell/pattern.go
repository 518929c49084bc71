package cell

import (
	"cmp"
	"fmt"
)

// Pattern decides whether an observer is notified of a new value.
//
// Unobserve compares patterns with ==, so patterns built from comparable
// values (Any, Range, Equals, Not) can be matched by an equal value, while
// OneOf and Match patterns only match themselves.
type Pattern interface {
	Matches(v any) bool
}

type anyPattern struct{}

func (anyPattern) Matches(any) bool { return true }

func (anyPattern) String() string { return "any" }

// Any matches every value. A nil Pattern means Any.
var Any Pattern = anyPattern{}

// Range matches ordered values of type T between Min and Max. Max is
// inclusive unless ExcludeMax is set. Values of other types never match.
type Range[T cmp.Ordered] struct {
	Min        T
	Max        T
	ExcludeMax bool
}

// Matches implements Pattern.
func (r Range[T]) Matches(v any) bool {
	x, ok := v.(T)
	if !ok || x < r.Min {
		return false
	}
	if r.ExcludeMax {
		return x < r.Max
	}
	return x <= r.Max
}

func (r Range[T]) String() string {
	if r.ExcludeMax {
		return fmt.Sprintf("%v...%v", r.Min, r.Max)
	}
	return fmt.Sprintf("%v..%v", r.Min, r.Max)
}

// Between matches lo <= v <= hi.
func Between[T cmp.Ordered](lo, hi T) Range[T] {
	return Range[T]{Min: lo, Max: hi}
}

// Until matches lo <= v < hi.
func Until[T cmp.Ordered](lo, hi T) Range[T] {
	return Range[T]{Min: lo, Max: hi, ExcludeMax: true}
}

type equalsPattern struct {
	v any
}

func (p equalsPattern) Matches(v any) bool { return Equal(p.v, v) }

// Equals matches values equal to v.
func Equals(v any) Pattern {
	return equalsPattern{v: v}
}

type oneOfPattern struct {
	vs []any
}

func (p *oneOfPattern) Matches(v any) bool {
	for _, want := range p.vs {
		if Equal(want, v) {
			return true
		}
	}
	return false
}

// OneOf matches values equal to any of vs.
func OneOf(vs ...any) Pattern {
	cp := make([]any, len(vs))
	copy(cp, vs)
	return &oneOfPattern{vs: cp}
}

type predicate struct {
	fn func(any) bool
}

func (p *predicate) Matches(v any) bool { return p.fn(v) }

// Match turns a predicate into a Pattern.
func Match(fn func(v any) bool) Pattern {
	return &predicate{fn: fn}
}

type notPattern struct {
	p Pattern
}

func (n notPattern) Matches(v any) bool { return !orAny(n.p).Matches(v) }

// Not matches every value p does not match.
func Not(p Pattern) Pattern {
	return notPattern{p: p}
}

func orAny(p Pattern) Pattern {
	if p == nil {
		return Any
	}
	return p
}

// samePattern compares two patterns with ==, treating nil as Any and
// non-comparable dynamic values as different.
func samePattern(a, b Pattern) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return orAny(a) == orAny(b)
}
