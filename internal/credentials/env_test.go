package credentials

import (
	"errors"
	"testing"

	"github.com/dvcrn/responses-bridge/internal/decode"
)

func TestEnvCredentialsFetcher(t *testing.T) {
	t.Setenv("UPSTREAM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	fetcher := NewEnvCredentialsFetcher(decode.Gemini)
	apiKey, err := fetcher.GetCredentials()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if apiKey != "google-key" {
		t.Errorf("Expected google-key, got %q", apiKey)
	}

	t.Setenv("UPSTREAM_API_KEY", "override")
	if apiKey, _ := fetcher.GetCredentials(); apiKey != "override" {
		t.Errorf("Expected UPSTREAM_API_KEY to win, got %q", apiKey)
	}

	if err := fetcher.RefreshCredentials(); err != nil {
		t.Errorf("Expected no error from RefreshCredentials, got %v", err)
	}
}

func TestEnvCredentialsFetcher_Missing(t *testing.T) {
	t.Setenv("UPSTREAM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewEnvCredentialsFetcher(decode.Anthropic).GetCredentials()
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	t.Setenv("UPSTREAM_API_KEY", "sk-abcdefghijklmnop")

	st := Describe(NewEnvCredentialsFetcher(decode.OpenAI), decode.OpenAI)
	if !st.HasCredentials || st.Source != "env" || st.Writable {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.KeyPreview != "sk-abc…mnop" {
		t.Errorf("unexpected preview %q", st.KeyPreview)
	}
}
