// Package app wires configuration, credentials, logging and metrics into a
// server.
package app

import (
	"fmt"

	"github.com/dvcrn/responses-bridge/internal/config"
	"github.com/dvcrn/responses-bridge/internal/credentials"
	"github.com/dvcrn/responses-bridge/internal/logger"
	"github.com/dvcrn/responses-bridge/internal/obs"
	"github.com/dvcrn/responses-bridge/internal/server"
	"github.com/rs/zerolog"
)

// Key sources accepted by NewCredentials.
const (
	KeySourceEnv      = "env"
	KeySourceFile     = "file"
	KeySourceKeychain = "keychain"
)

// NewLogger builds the logger described by cfg.
func NewLogger(cfg config.Config) zerolog.Logger {
	return logger.NewWithOptions(logger.Options{Env: cfg.Env, File: cfg.LogFile})
}

// NewCredentials returns the key fetcher for source. path is only used by
// the file source and defaults to credentials.DefaultKeyFilePath.
func NewCredentials(source, path string, cfg config.Config, log zerolog.Logger) (credentials.CredentialsFetcher, error) {
	switch source {
	case KeySourceEnv, "":
		return credentials.NewEnvCredentialsFetcher(cfg.Provider()), nil
	case KeySourceFile:
		if path == "" {
			path = credentials.DefaultKeyFilePath()
		}
		return credentials.NewFSCredentialsFetcher(path, cfg.Provider()), nil
	case KeySourceKeychain:
		return credentials.NewKeychainCredentialsFetcherWithLogger(cfg.Provider(), log), nil
	}
	return nil, fmt.Errorf("unknown key source %q", source)
}

// NewServer creates a new server instance with the given credentials fetcher.
// Metrics go to the global meter provider, a no-op unless obs.Setup ran.
func NewServer(cfg config.Config, credsFetcher credentials.CredentialsFetcher, log zerolog.Logger) (*server.Server, error) {
	metrics, err := obs.Global()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	return server.New(cfg, log, credsFetcher, server.WithMetrics(metrics)), nil
}
