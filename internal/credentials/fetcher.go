// Package credentials resolves the upstream API key from the environment, a
// key file, the macOS keychain or Cloudflare KV.
package credentials

import (
	"errors"

	"github.com/dvcrn/responses-bridge/internal/decode"
)

// ErrNoCredentials is returned when a source holds no key for the provider.
var ErrNoCredentials = errors.New("credentials: no api key")

// CredentialsFetcher defines the interface for retrieving the upstream key.
type CredentialsFetcher interface {
	GetCredentials() (apiKey string, err error)
	// RefreshCredentials drops cached state so the next GetCredentials reads
	// the source again.
	RefreshCredentials() error
	// Source names where keys come from, for status reporting.
	Source() string
}

// KeyUpdater is implemented by sources that can store a new key.
type KeyUpdater interface {
	CredentialsFetcher
	UpdateKey(apiKey string) error
}

// Status describes a fetcher for the admin API.
type Status struct {
	Source         string `json:"source"`
	Provider       string `json:"provider"`
	HasCredentials bool   `json:"hasCredentials"`
	KeyPreview     string `json:"keyPreview,omitempty"`
	Writable       bool   `json:"writable"`
	Error          string `json:"error,omitempty"`
}

// Describe fetches the current key and reports on it without revealing it.
func Describe(f CredentialsFetcher, provider decode.Provider) Status {
	_, writable := f.(KeyUpdater)
	st := Status{Source: f.Source(), Provider: string(provider), Writable: writable}
	key, err := f.GetCredentials()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.HasCredentials = true
	st.KeyPreview = Preview(key)
	return st
}

// Preview shortens a key to its first and last characters.
func Preview(key string) string {
	if len(key) <= 12 {
		return "…"
	}
	return key[:6] + "…" + key[len(key)-4:]
}
