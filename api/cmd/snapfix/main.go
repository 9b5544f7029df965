package main

import (
	"fmt"
	"os"

	"snap-to-spec/api/internal/cli"
)

var (
	version = "dev" // Overwritten at build time
)

func main() {
	if err := cli.NewRootCmd(version, cli.Options{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
