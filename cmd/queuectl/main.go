package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/rzbill/queuectl/internal/cli"
	"github.com/rzbill/queuectl/pkg/log"
)

func main() {
	// Optional .env in the working directory; absence is not an error.
	_ = godotenv.Load()

	logger := log.FromEnv()

	root := cli.NewRoot(logger)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
