package credentials

import (
	"fmt"

	"github.com/dvcrn/responses-bridge/internal/decode"
	"github.com/dvcrn/responses-bridge/internal/env"
)

// envKeys lists, per provider, the variables consulted after UPSTREAM_API_KEY.
var envKeys = map[decode.Provider][]string{
	decode.Gemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	decode.OpenAI:    {"OPENAI_API_KEY"},
	decode.Anthropic: {"ANTHROPIC_API_KEY"},
}

// EnvCredentialsFetcher retrieves the key from environment variables.
type EnvCredentialsFetcher struct {
	provider decode.Provider
}

// NewEnvCredentialsFetcher creates a new environment-based credentials fetcher
func NewEnvCredentialsFetcher(provider decode.Provider) *EnvCredentialsFetcher {
	return &EnvCredentialsFetcher{provider: provider}
}

func (e *EnvCredentialsFetcher) GetCredentials() (string, error) {
	names := append([]string{"UPSTREAM_API_KEY"}, envKeys[e.provider]...)
	for _, name := range names {
		if v, ok := env.Get(name); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: set one of %v", ErrNoCredentials, names)
}

// RefreshCredentials is a no-op for environment credentials
func (e *EnvCredentialsFetcher) RefreshCredentials() error {
	return nil
}

func (e *EnvCredentialsFetcher) Source() string { return "env" }
