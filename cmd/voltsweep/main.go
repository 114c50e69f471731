package main

import (
	"fmt"
	"os"

	"github.com/voltsweep/voltsweep/cli"
)

func main() {
	if err := cli.New().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
