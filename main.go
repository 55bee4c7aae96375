package main

import (
	"os"

	"github.com/olivejs/ginger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
