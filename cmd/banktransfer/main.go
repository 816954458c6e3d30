package main

import (
	"fmt"
	"os"

	"banktransfer/cmd/banktransfer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		if !commands.Reported(err) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(commands.ExitCode(err))
	}
}
