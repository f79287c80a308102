package main

import (
	"os"

	"github.com/xraph/settlement/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
