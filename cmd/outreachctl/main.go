package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xavierca1/linkedin-outreach/internal/app"
	"github.com/xavierca1/linkedin-outreach/internal/config"
)

func main() {
	root := newRootCmd(buildFromEnv, os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildFromEnv wires the same graph as the API, without metrics.
func buildFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel, "production")
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, logger, nil)
}
