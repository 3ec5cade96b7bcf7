package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/conorfennell/lingosrs/internal/cli"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
