package main

import (
	"os"

	"github.com/Yourdaylight/stock-datasource-sub003/cmd/quant/commands"
)

// main is the entry point for the selection-pipeline CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
