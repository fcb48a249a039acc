// CostWise — cost-aware LLM task router.
// Entry point: dispatches to the CLI in internal/cmd.
package main

import "github.com/costwise/costwise/internal/cmd"

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	cmd.Execute(Version)
}
