package main

import (
	"os"

	"github.com/jon4hz/reqtag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
