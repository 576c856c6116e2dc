package main

import (
	"os"

	"github.com/rustyeddy/plumbline/cmd/plumbline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
