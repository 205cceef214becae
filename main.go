package main

import (
	"os"

	"github.com/hrvibe/hrvibe-core/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
