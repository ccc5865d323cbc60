package main

import (
	"os"

	"github.com/moolen/sentinel/cmd/sentinel/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
