package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/vango-dev/cells/internal/demo"
	"github.com/vango-dev/cells/internal/errors"
	"github.com/vango-dev/cells/pkg/cell"
	"github.com/vango-dev/cells/pkg/middleware"
)

func graphCmd() *cobra.Command {
	var tires int

	cmd := &cobra.Command{
		Use:   "graph [motor|modelview]",
		Short: "Print the dependency graph of a demo's objects",
		Long: `Build a demo's objects and print, for each of them, which
computations re-run when its cells change.

Examples:
  cells graph
  cells graph motor --tires 2`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"motor", "modelview"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := ""
			if len(args) == 1 {
				which = args[0]
			}

			rt := cell.NewRuntime()
			var owners []cell.Owner
			var keep []any

			switch which {
			case "", "motor", "modelview":
			default:
				return errors.New("C206").
					WithDetail(fmt.Sprintf("no graph for %q", which)).
					WithSuggestion("Use motor or modelview")
			}

			if which == "" || which == "motor" {
				m := demo.NewMotor(rt, 20)
				owners = append(owners, m)
				for range tires {
					t := demo.NewTire(rt, m)
					owners = append(owners, t)
					keep = append(keep, t)
				}
			}
			if which == "" || which == "modelview" {
				model := demo.NewModel(rt)
				view := demo.NewView(rt, model)
				owners = append(owners, model, view.Object)
				keep = append(keep, view)
			}

			fmt.Fprint(cmd.OutOrStdout(), middleware.FormatGraph(owners...))
			runtime.KeepAlive(keep)
			return nil
		},
	}

	cmd.Flags().IntVar(&tires, "tires", 4, "Number of tires attached to the motor")

	return cmd
}
