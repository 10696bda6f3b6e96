package main

import (
	"os"

	"github.com/joseph-ayodele/nfse-reader/cmd/nfsectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
