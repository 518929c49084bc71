package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/cells/internal/demo"
	"github.com/vango-dev/cells/internal/errors"
	"github.com/vango-dev/cells/pkg/cell"
	"github.com/vango-dev/cells/pkg/middleware"
)

func demoCmd() *cobra.Command {
	var (
		input string
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "demo [name]",
		Short: "Run a demo",
		Long: `Run one of the bundled demos, or list them when no name is given.

The modelview demo reads lines from --input, or from stdin, and sets the
model's content to each of them.

Examples:
  cells demo
  cells demo motor
  cells demo modelview --input notes.txt
  cells demo slicing --debug`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listDemos(cmd.OutOrStdout())
				return nil
			}
			return runDemo(cmd, args[0], input, debug)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "File providing input lines (default stdin)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log writes and the dependency graph of failing formulas to stderr")

	return cmd
}

func listDemos(w io.Writer) {
	fmt.Fprintln(w, "Available demos:")
	for _, d := range demo.All() {
		fmt.Fprintf(w, "  %-10s %s\n", d.Name, d.Description)
	}
}

func runDemo(cmd *cobra.Command, name, input string, debug bool) error {
	if _, ok := demo.Lookup(name); !ok {
		return demo.Run(name, demo.Env{})
	}

	env := demo.Env{
		Out: cmd.OutOrStdout(),
		In:  cmd.InOrStdin(),
	}
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return errors.Newf(errors.CategoryCLI, "cannot open input: %v", err).Wrap(err)
		}
		defer f.Close()
		env.In = f
	}

	opts := []cell.Option{}
	if debug {
		handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts,
			cell.WithLogger(slog.New(handler)),
			cell.WithExtensions(middleware.NewGraphDebug(handler)),
		)
	}
	env.Runtime = cell.NewRuntime(opts...)

	return demo.Run(name, env)
}
