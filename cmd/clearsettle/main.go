package main

import (
	"fmt"
	"os"

	"github.com/clearsettle/clearsettle/cmd/clearsettle/commands"
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local overrides; absence is fine.
	_ = godotenv.Load()

	if err := commands.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
