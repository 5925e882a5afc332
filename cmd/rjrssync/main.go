// Command rjrssync is a fast, incremental, cross-platform file-tree
// synchronizer. It drives a local or remote doer process over an
// encrypted TCP link and diffs/copies trees without re-reading
// unchanged file content.
package main

import (
	"fmt"
	"os"

	"github.com/rjrssync/rjrssync/internal/rerr"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rjrssync:", err)
		return rerr.KindOf(err).ExitCode()
	}
	return 0
}
