package main

import (
	"os"

	"github.com/tomyedwab/sibilus/cmd/sibilus/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
