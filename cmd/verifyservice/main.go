// Package main is the entrypoint for the phone verification service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aelexs/phone-verify-service/internal/config"
	"github.com/aelexs/phone-verify-service/internal/server"
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
		Name:           "verifyservice",
		PortFromConfig: func(cfg *config.Config) int { return cfg.Verify.HTTPPort },
		Setup:          setup,
	}, server.Listeners{})
}
