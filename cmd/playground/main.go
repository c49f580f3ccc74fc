package main

import (
	"os"

	"github.com/fortiblox/stratus-playground/cmd/playground/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
