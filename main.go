package main

import (
	"github.com/joho/godotenv"

	"github.com/custodia-labs/recall-cli/internal/adapters/driving/cli"
)

func main() {
	// API keys may live in a local .env file.
	_ = godotenv.Load()

	cli.Execute()
}
