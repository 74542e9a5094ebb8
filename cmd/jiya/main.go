package main

import (
	"os"

	"github.com/harun/jiya/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	// A .env next to the binary supplies provider keys in development
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
