// Command statetree compiles, tests, inspects and hot reloads statetree
// modules.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/statetree/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
