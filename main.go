// Typegraph converts flat typegraph schemas into linked type graphs and
// checks structural subtyping between their types.
//
// The converted graph is indexed on disk so it can be searched, inspected and
// served to MCP clients.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/typegraph-go/cmd"
)

func main() {
	if err := cmd.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
