// Weft - a data fabric over heterogeneous data sources.
//
// Weft reflects in-memory, SQL-backed, and KV-backed sources into one
// unified catalog and dispatches lookups, inserts, and raw statements
// to whichever source owns the data.
package main

import (
	"fmt"
	"os"

	"github.com/weftdata/weft/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
