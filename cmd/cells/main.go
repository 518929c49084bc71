package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/cells/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┬  ┬  ┌─┐
  │  ├┤ │  │  └─┐
  └─┘└─┘┴─┘┴─┘└─┘
`

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		reportError(cmd, err)
		os.Exit(1)
	}
}

// reportError prints err to the command's error stream in the format
// chosen with --error-format.
func reportError(cmd *cobra.Command, err error) {
	format, _ := cmd.PersistentFlags().GetString("error-format")
	errors.Print(cmd.ErrOrStderr(), err, format)
}

func newRootCmd() *cobra.Command {
	var dir string

	rootCmd := &cobra.Command{
		Use:   "cells",
		Short: "Reactive, dependency-tracked cells",
		Long: `cells serves and demonstrates reactive cell objects.

Cells hold values; formulas bound to cells are recomputed when the
cells they read change, and observers are notified of every change:

  • Dependencies discovered by tracing formula reads
  • Pattern-filtered observers
  • Slice elements as cells
  • HTTP/WebSocket access to live objects`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "Directory containing cells.json")
	rootCmd.PersistentFlags().String("error-format", errors.OutputText, "Error output: text, compact or json")

	rootCmd.AddCommand(
		serveCmd(&dir),
		demoCmd(),
		graphCmd(),
		configCmd(&dir),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
