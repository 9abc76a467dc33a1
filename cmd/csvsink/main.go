package main

import (
	"os"

	"github.com/lawrencejones/csvsink/cmd/csvsink/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
