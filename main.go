package main

import (
	"os"

	"github.com/saltproject/minion-setup/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
