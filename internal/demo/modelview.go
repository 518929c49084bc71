package demo

import (
	"bufio"
	"fmt"
	"runtime"

	"github.com/vango-dev/cells/pkg/cell"
)

// Model holds the edited text.
type Model struct {
	*cell.Object

	Content cell.Cell[string]
}

// NewModel creates a model with the default greeting.
func NewModel(rt *cell.Runtime) *Model {
	obj := rt.NewObject("model", "content")
	m := &Model{Object: obj, Content: cell.Of[string](obj, "content")}
	m.Content.Set("Hello World.")
	return m
}

// View renders a model as a decorated label.
type View struct {
	*cell.Object

	Label cell.Cell[string]
}

// NewView creates a view whose label follows m.
func NewView(rt *cell.Runtime, m *Model) *View {
	obj := rt.NewObject("view", "label")
	v := &View{Object: obj, Label: cell.Of[string](obj, "label")}
	v.Label.Calculate(func() string {
		return "+++" + m.Content.Get() + "+++"
	})
	return v
}

// RunModelView feeds every input line into a model and prints the view's
// label each time it changes.
func RunModelView(env Env) error {
	out, rt := env.out(), env.runtime()

	model := NewModel(rt)
	view := NewView(rt, model)
	fmt.Fprintln(out, view.Label.Peek())

	h := view.Label.OnChange(nil, func(label, _ string) {
		fmt.Fprintln(out, label)
	})

	var err error
	if env.In != nil {
		scanner := bufio.NewScanner(env.In)
		for scanner.Scan() && err == nil {
			line := scanner.Text()
			err = cell.Catch(func() { model.Content.Set(line) })
		}
		if err == nil {
			err = scanner.Err()
		}
	}

	runtime.KeepAlive(h)
	return err
}
