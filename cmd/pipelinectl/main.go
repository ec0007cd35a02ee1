package main

import (
	"context"
	"fmt"
	"os"

	"talentflow/internal/bootstrap"
	"talentflow/internal/config"
	"talentflow/internal/observability"
)

func main() {
	opener := func(ctx context.Context) (*bootstrap.Container, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		logger := observability.NewLogger(cfg.LogLevel)
		container, err := bootstrap.New(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return container, func() { container.Close(logger) }, nil
	}
	if err := newRootCmd(opener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
