// Command stencilactl is a thin demonstration CLI over the stencila-core
// packages: it validates and runs pipelines against the in-memory engine,
// diffs two document trees, and drives a single provider completion. It
// exists to exercise the library end to end, not as a production tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "stencilactl",
		Short: "Demonstration CLI for the stencila-core document/pipeline engine",
	}
	root.AddCommand(
		newPipelineCmd(),
		newDocCmd(),
		newLLMCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
