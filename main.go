package main

import (
	"os"

	"github.com/solbatt/solbatt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
