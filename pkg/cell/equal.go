package cell

import "reflect"

// Equal reports whether two cell values are equal. Values of different
// dynamic types are never equal. Comparable values use ==, everything else
// falls back to reflect.DeepEqual.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		if eq, ok := compare(a, b); ok {
			return eq
		}
	}
	return reflect.DeepEqual(a, b)
}

// compare applies == and reports ok=false when the dynamic values turn out
// not to be comparable (e.g. a struct holding a slice in an interface field).
func compare(a, b any) (eq, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return a == b, true
}

// equalOf adapts a typed equality function to untyped cell values.
func equalOf[T any](fn func(a, b T) bool) func(a, b any) bool {
	return func(a, b any) bool {
		at, aok := a.(T)
		bt, bok := b.(T)
		if !aok || !bok {
			return Equal(a, b)
		}
		return fn(at, bt)
	}
}
