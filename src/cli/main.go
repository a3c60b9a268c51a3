package main

import (
	"os"

	"github.com/androiddrew/vdist/src/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
