package main

import (
	"os"

	"github.com/pricescout/backend/internal/delivery/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
