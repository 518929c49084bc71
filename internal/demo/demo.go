// Package demo contains small programs showing cells at work. Each demo
// writes its trace to an io.Writer so it can be run from the CLI and
// checked in tests.
package demo

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/vango-dev/cells/internal/errors"
	"github.com/vango-dev/cells/pkg/cell"
)

// Env is what a demo runs against.
type Env struct {
	// Out receives the demo's output. Defaults to io.Discard.
	Out io.Writer

	// In provides input lines to interactive demos.
	In io.Reader

	// Runtime owns the demo's objects. Defaults to cell.Default().
	Runtime *cell.Runtime
}

func (e Env) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

func (e Env) runtime() *cell.Runtime {
	if e.Runtime == nil {
		return cell.Default()
	}
	return e.Runtime
}

// Demo describes a runnable demo.
type Demo struct {
	Name        string
	Description string
	Run         func(env Env) error
}

var demos = []Demo{
	{
		Name:        "motor",
		Description: "Motor with a fuel pump and four tires reacting to its temperature",
		Run:         RunMotor,
	},
	{
		Name:        "slicing",
		Description: "Slice elements used as cells, with element and range formulas",
		Run:         RunSlicing,
	},
	{
		Name:        "modelview",
		Description: "View label computed from a model fed by input lines",
		Run:         RunModelView,
	},
}

// All returns the available demos.
func All() []Demo {
	return slices.Clone(demos)
}

// Names returns the demo names.
func Names() []string {
	names := make([]string, len(demos))
	for i, d := range demos {
		names[i] = d.Name
	}
	return names
}

// Lookup returns the demo called name.
func Lookup(name string) (Demo, bool) {
	for _, d := range demos {
		if d.Name == name {
			return d, true
		}
	}
	return Demo{}, false
}

// Run runs the demo called name. Unknown names return a C206 error.
func Run(name string, env Env) error {
	d, ok := Lookup(name)
	if !ok {
		return errors.New("C206").
			WithDetail(fmt.Sprintf("no demo named %q", name)).
			WithSuggestion("Available demos: " + strings.Join(Names(), ", "))
	}
	if err := d.Run(env); err != nil {
		return errors.FromCell(err)
	}
	return nil
}
