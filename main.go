package main

import (
	"context"
	"os"

	"github.com/mrlokans/congregate/internal/cli"
	"github.com/mrlokans/congregate/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := cli.Execute(context.Background(), Version+" ("+Commit+")", os.Args[1:], os.Stdout); err != nil {
		entrypoint.Exit(err)
	}
}
