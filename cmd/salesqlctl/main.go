package main

import (
	"context"
	"os"

	"github.com/salesql/salesql/internal/cli/salesqlctl"
)

func main() {
	os.Exit(salesqlctl.Run(context.Background(), os.Args[1:], salesqlctl.Options{
		BaseURL: os.Getenv("SALESQL_API_URL"),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}))
}
