//go:build js && wasm

package main

import (
	"github.com/dvcrn/responses-bridge/internal/app"
	"github.com/dvcrn/responses-bridge/internal/config"
	"github.com/dvcrn/responses-bridge/internal/credentials"
	"github.com/dvcrn/responses-bridge/internal/logger"
	"github.com/syumai/workers"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		bootLog := logger.NewProduction()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := app.NewLogger(cfg)

	log.Info().Str("backend", cfg.Backend).Msg("Using Cloudflare KV credentials fetcher")
	kvFetcher, err := credentials.NewCloudflareKVFetcher(cfg.Provider())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV fetcher")
	}

	srv, err := app.NewServer(cfg, kvFetcher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	// Serve using workers - it handles all the HTTP server setup
	workers.Serve(srv)
}
