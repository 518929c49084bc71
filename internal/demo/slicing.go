package demo

import (
	"fmt"
	"runtime"

	"github.com/vango-dev/cells/pkg/cell"
)

// RunSlicing walks through slice elements as cells: element observers,
// a formula bound to one element, a formula bound to a range and a named
// cell computed from an element.
func RunSlicing(env Env) error {
	out, rt := env.out(), env.runtime()

	ary := cell.NewSliceIn(rt, "ary", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	ary2 := cell.NewSliceIn(rt, "ary2", 11, 12, 13, 14, 15, 16, 17, 18, 19, 20)
	meta := rt.NewObject("ary2", "value")
	value := cell.Of[int](meta, "value")

	h := ary.Observe(nil, func(newValue, oldValue any, owner cell.Owner, id cell.CellID) {
		fmt.Fprintf(out, "%s%s changed from %v to %v\n", owner.Label(), id, oldValue, newValue)
	})

	err := cell.Catch(func() {
		ary.Set(1, 3)
		ary.Set(2, 5)

		value.Set(100)

		ary.Calculate(3, func() int { return value.Get() + ary2.At(2) })
		value.Set(200)
		ary2.Set(2, 30)

		ary.CalculateRange(5, func() []int {
			src := ary2.Range(6, 10)
			scaled := make([]int, len(src))
			for i, v := range src {
				scaled[i] = v * 10
			}
			return scaled
		})
		ary2.Set(7, 2)

		value.Calculate(func() int { return ary2.At(9) * 1000 })
		ary2.Set(9, 42)
	})

	runtime.KeepAlive(h)
	return err
}
