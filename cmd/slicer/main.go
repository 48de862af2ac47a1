// Package main implements the slicer CLI: slice a compiled-IR module
// against one or more criteria and emit either a source listing, a
// compact line manifest, or (optionally) a persisted SQLite manifest.
//
// run logic stays out of main() so defers still execute on error paths;
// flags are parsed up front and phases sequenced and logged through a
// progress reporter. Commands are wired with cobra: a root command plus
// a slice subcommand.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slicer",
	Short: "Source-level program slicing of compiled C/C++ programs",
	Long: `slicer computes a backward dependence slice of a whole-program IR
against one or more slicing criteria, recovering the source lines
transitively relevant to those criteria.`,
}

func init() {
	rootCmd.AddCommand(sliceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeOf(err))
	}
}

// exitCodeOf maps a pipeline error to its exit code: 1 for
// configuration/parse errors, 2 for analysis errors, 1 as the fallback
// for anything cobra itself raises (bad flags, unknown command).
func exitCodeOf(err error) int {
	if ec, ok := err.(interface{ ExitCode() int }); ok {
		return ec.ExitCode()
	}
	return 1
}
