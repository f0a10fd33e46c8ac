// Package config assembles the bridge configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dvcrn/responses-bridge/internal/decode"
	"github.com/dvcrn/responses-bridge/internal/env"
	"github.com/dvcrn/responses-bridge/internal/framer"
	"github.com/dvcrn/responses-bridge/internal/markdown"
	"gopkg.in/yaml.v3"
)

// ErrUnknownBackend is returned when BACKEND names no supported provider.
var ErrUnknownBackend = errors.New("config: unknown backend")

const defaultPort = "9879"

var defaultBaseURLs = map[decode.Provider]string{
	decode.Gemini:    "https://generativelanguage.googleapis.com/v1beta",
	decode.OpenAI:    "https://api.openai.com/v1",
	decode.Anthropic: "https://api.anthropic.com/v1",
}

var defaultModels = map[decode.Provider]string{
	decode.Gemini:    "gemini-2.5-flash",
	decode.OpenAI:    "gpt-4.1-mini",
	decode.Anthropic: "claude-sonnet-4-5",
}

// Config is the runtime configuration of the bridge.
type Config struct {
	Port            string   `yaml:"port"`
	Backend         string   `yaml:"backend"`
	UpstreamBaseURL string   `yaml:"upstream_base_url"`
	DefaultModel    string   `yaml:"default_model"`
	Models          []string `yaml:"models"`
	// GeminiUseSSE selects streamGenerateContent?alt=sse instead of the
	// bracketed JSON array body.
	GeminiUseSSE bool `yaml:"gemini_use_sse"`

	MaxDeltaChunkSize   int    `yaml:"max_delta_chunk_size"`
	ProseFlushThreshold int    `yaml:"prose_flush_threshold"`
	TableOutputMode     string `yaml:"table_output_mode"`

	AdminAPIKey   string `yaml:"admin_api_key"`
	MetricsStdout bool   `yaml:"metrics_stdout"`
	LogFile       string `yaml:"log_file"`
	Env           string `yaml:"env"`
}

// Load reads path (skipped when empty) and applies environment overrides.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	for key, dst := range map[string]*string{
		"PORT":              &c.Port,
		"BACKEND":           &c.Backend,
		"UPSTREAM_BASE_URL": &c.UpstreamBaseURL,
		"DEFAULT_MODEL":     &c.DefaultModel,
		"TABLE_OUTPUT_MODE": &c.TableOutputMode,
		"ADMIN_API_KEY":     &c.AdminAPIKey,
		"LOG_FILE":          &c.LogFile,
		"ENV":               &c.Env,
	} {
		if v, ok := env.Get(key); ok {
			*dst = v
		}
	}
	if v, ok := env.Get("MODELS"); ok {
		c.Models = splitList(v)
	}
	if _, ok := env.Get("GEMINI_USE_SSE"); ok {
		c.GeminiUseSSE = env.Bool("GEMINI_USE_SSE")
	}
	if _, ok := env.Get("METRICS_STDOUT"); ok {
		c.MetricsStdout = env.Bool("METRICS_STDOUT")
	}

	var err error
	if c.MaxDeltaChunkSize, err = env.Int("MAX_DELTA_CHUNK_SIZE", c.MaxDeltaChunkSize); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.ProseFlushThreshold, err = env.Int("PROSE_FLUSH_THRESHOLD", c.ProseFlushThreshold); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) normalize() error {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.Backend == "" {
		c.Backend = string(decode.Gemini)
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	provider := decode.Provider(c.Backend)
	base, ok := defaultBaseURLs[provider]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.UpstreamBaseURL == "" {
		c.UpstreamBaseURL = base
	}
	c.UpstreamBaseURL = strings.TrimRight(c.UpstreamBaseURL, "/")
	if c.DefaultModel == "" {
		c.DefaultModel = defaultModels[provider]
	}
	if len(c.Models) == 0 {
		c.Models = []string{c.DefaultModel}
	}
	switch markdown.TableMode(c.TableOutputMode) {
	case "", markdown.TableText, markdown.TableStructured:
	default:
		return fmt.Errorf("config: table_output_mode %q", c.TableOutputMode)
	}
	return nil
}

// Provider returns the upstream wire dialect.
func (c Config) Provider() decode.Provider {
	return decode.Provider(c.Backend)
}

// Framing returns how the upstream delivers its stream body.
func (c Config) Framing() framer.Kind {
	if c.Provider() == decode.Gemini && !c.GeminiUseSSE {
		return framer.BracketedJSON
	}
	return framer.SSE
}

// Markdown returns the segmenter and parser options.
func (c Config) Markdown() markdown.Options {
	return markdown.Options{
		MaxDeltaChunkSize:   c.MaxDeltaChunkSize,
		ProseFlushThreshold: c.ProseFlushThreshold,
		TableOutputMode:     markdown.TableMode(c.TableOutputMode),
	}
}

// Development reports whether console logging should be used.
func (c Config) Development() bool {
	return c.Env == "" || c.Env == "dev" || c.Env == "development"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
