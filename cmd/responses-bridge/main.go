package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvcrn/responses-bridge/internal/app"
	"github.com/dvcrn/responses-bridge/internal/config"
	"github.com/dvcrn/responses-bridge/internal/credentials"
	"github.com/dvcrn/responses-bridge/internal/env"
	"github.com/dvcrn/responses-bridge/internal/logger"
	"github.com/dvcrn/responses-bridge/internal/obs"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	envFile := flag.String("env-file", ".env", "Dotenv file loaded before reading the environment")
	keySource := flag.String("key-source", app.KeySourceEnv, "Where the upstream API key comes from: env, file or keychain")
	keyFile := flag.String("key-file", credentials.DefaultKeyFilePath(), "Key file used with -key-source=file")
	flag.Parse()

	if err := env.Load(*envFile); err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Str("path", *envFile).Msg("Failed to load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := app.NewLogger(cfg)

	if cfg.MetricsStdout {
		shutdown, err := obs.Setup(os.Stdout, time.Minute)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up metrics")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to flush metrics")
			}
		}()
	}

	credsFetcher, err := app.NewCredentials(*keySource, *keyFile, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid key source")
	}
	log.Info().Str("source", credsFetcher.Source()).Str("backend", cfg.Backend).Msg("Using credentials source")

	validateCredentialsAtStartup(credsFetcher, cfg, log)

	srv, err := app.NewServer(cfg, credsFetcher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: srv}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("backend", cfg.Backend).
		Str("upstream", cfg.UpstreamBaseURL).
		Str("framing", string(cfg.Framing())).
		Msg("Starting server")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server failed")
		return
	}
	log.Info().Msg("Server stopped")
}

func validateCredentialsAtStartup(credsFetcher credentials.CredentialsFetcher, cfg config.Config, log zerolog.Logger) {
	st := credentials.Describe(credsFetcher, cfg.Provider())
	if !st.HasCredentials {
		log.Warn().Str("error", st.Error).Msg("No upstream API key available yet, requests will fail until one is configured")
		return
	}
	log.Info().Str("key_preview", st.KeyPreview).Msg("Credentials loaded successfully")
}
