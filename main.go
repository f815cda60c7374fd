package main

import (
	"os"

	"github.com/pathwise/mri-engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
