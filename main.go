package main

import (
	"os"

	"github.com/lexmine/lexmine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
