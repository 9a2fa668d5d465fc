// Command milgraph inspects and legalizes typed dataflow graphs
// described in YAML files.
package main

import (
	"fmt"
	"os"

	"github.com/gomlx/milgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "milgraph: %v\n", err)
		os.Exit(1)
	}
}
