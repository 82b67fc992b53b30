package main

import (
	"os"

	"github.com/seguelabs/segue/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
