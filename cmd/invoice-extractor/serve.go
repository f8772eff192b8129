package main

import (
	"context"
	"fmt"

	"github.com/zombor/invoice-extractor/internal/config"
	"github.com/zombor/invoice-extractor/internal/logger"
	"github.com/zombor/invoice-extractor/internal/server"
)

func runServe(ctx context.Context, cfg *config.Config) error {
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := server.NewServer(p.service, int64(cfg.Server.MaxUploadMB)<<20)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	logger.WithComponent("main").Info().
		Str("address", fmt.Sprintf("http://localhost%s", addr)).
		Str("version", version).
		Msg("Server started")

	return srv.Start(ctx, addr)
}
