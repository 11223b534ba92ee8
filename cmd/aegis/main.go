// Command aegis is the governance engine's entry point: a cobra CLI over
// the scheduler/governor/regime/tripwire core internal/di wires together.
package main

import (
	"fmt"
	"os"

	"github.com/aristath/aegis/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitRuntimeFatal)
	}
}
