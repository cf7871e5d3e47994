package main

import (
	"os"

	"github.com/wonny/optionrank/cmd/optionrank/commands"
)

// main is the entry point for the optionrank CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/optionrank [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
