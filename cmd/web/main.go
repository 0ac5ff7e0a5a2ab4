// Package main is the entrypoint for the web front-end. It serves the
// platform's pages and keeps each visitor's backend tokens in a server-side
// session.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/challengehub/web/internal/config"
	"github.com/challengehub/web/internal/server"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:           "web",
		PortFromConfig: func(cfg *config.Config) int { return cfg.Web.HTTPPort },
		Setup:          setup,
	}, nil)
}
