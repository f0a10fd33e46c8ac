package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dvcrn/responses-bridge/internal/decode"
	"github.com/dvcrn/responses-bridge/internal/framer"
	"github.com/dvcrn/responses-bridge/internal/markdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "BACKEND", "UPSTREAM_BASE_URL", "DEFAULT_MODEL", "MODELS", "GEMINI_USE_SSE",
	"MAX_DELTA_CHUNK_SIZE", "PROSE_FLUSH_THRESHOLD", "TABLE_OUTPUT_MODE", "ADMIN_API_KEY",
	"METRICS_STDOUT", "LOG_FILE", "ENV",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9879", cfg.Port)
	assert.Equal(t, decode.Gemini, cfg.Provider())
	assert.Equal(t, framer.BracketedJSON, cfg.Framing())
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", cfg.UpstreamBaseURL)
	assert.Equal(t, []string{"gemini-2.5-flash"}, cfg.Models)
	assert.True(t, cfg.Development())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "8080"
backend: OpenAI
upstream_base_url: http://localhost:1234/v1/
models: [a, b]
max_delta_chunk_size: 16
table_output_mode: structured
env: production
`), 0o600))

	t.Setenv("PORT", "9000")
	t.Setenv("PROSE_FLUSH_THRESHOLD", "64")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, decode.OpenAI, cfg.Provider())
	assert.Equal(t, framer.SSE, cfg.Framing())
	assert.Equal(t, "http://localhost:1234/v1", cfg.UpstreamBaseURL)
	assert.Equal(t, []string{"a", "b"}, cfg.Models)
	assert.Equal(t, "gpt-4.1-mini", cfg.DefaultModel)
	assert.False(t, cfg.Development())
	assert.Equal(t, markdown.Options{
		MaxDeltaChunkSize:   16,
		ProseFlushThreshold: 64,
		TableOutputMode:     markdown.TableStructured,
	}, cfg.Markdown())
}

func TestLoad_EnvLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND", "gemini")
	t.Setenv("GEMINI_USE_SSE", "true")
	t.Setenv("MODELS", " gemini-2.5-pro, ,gemini-2.5-flash ")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, framer.SSE, cfg.Framing())
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.5-flash"}, cfg.Models)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("BACKEND", "bedrock")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("bad integer", func(t *testing.T) {
		t.Setenv("MAX_DELTA_CHUNK_SIZE", "lots")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad table mode", func(t *testing.T) {
		t.Setenv("TABLE_OUTPUT_MODE", "html")
		_, err := Load("")
		assert.Error(t, err)
	})
}
