// Command evaluate builds a wand-ready segment from a document collection
// and runs batches of queries against it through the WAND / Block-Max
// WAND evaluation core, writing results in TREC run format.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "evaluate",
		Short:   "Build segments and evaluate disjunctive top-k queries with WAND/BMW",
		Version: Version,
	}

	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(queryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
