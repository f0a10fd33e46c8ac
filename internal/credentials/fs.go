package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dvcrn/responses-bridge/internal/decode"
	json "github.com/goccy/go-json"
)

// keyFile is the on-disk layout: one key per provider.
//
//	{"keys": {"gemini": "AIza...", "openai": "sk-..."}}
type keyFile struct {
	Keys map[string]string `json:"keys"`
}

// FSCredentialsFetcher reads the key for one provider from a JSON key file.
// The file is read once and cached until RefreshCredentials.
type FSCredentialsFetcher struct {
	Path     string
	provider decode.Provider

	mu     sync.Mutex
	cached string
}

func NewFSCredentialsFetcher(path string, provider decode.Provider) *FSCredentialsFetcher {
	return &FSCredentialsFetcher{Path: path, provider: provider}
}

func (f *FSCredentialsFetcher) GetCredentials() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached != "" {
		return f.cached, nil
	}
	kf, err := readKeyFile(f.Path)
	if err != nil {
		return "", err
	}
	key := kf.Keys[string(f.provider)]
	if key == "" {
		return "", fmt.Errorf("%w: %s has no %s key", ErrNoCredentials, f.Path, f.provider)
	}
	f.cached = key
	return key, nil
}

func (f *FSCredentialsFetcher) RefreshCredentials() error {
	f.mu.Lock()
	f.cached = ""
	f.mu.Unlock()
	return nil
}

func (f *FSCredentialsFetcher) Source() string { return "file" }

// UpdateKey stores a new key for the provider, keeping the others.
func (f *FSCredentialsFetcher) UpdateKey(apiKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	kf, err := readKeyFile(f.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if kf.Keys == nil {
		kf.Keys = map[string]string{}
	}
	kf.Keys[string(f.provider)] = apiKey
	if err := WriteKeyFile(f.Path, kf.Keys); err != nil {
		return err
	}
	f.cached = apiKey
	return nil
}

// WriteKeyFile creates or replaces a key file readable only by the owner.
func WriteKeyFile(path string, keys map[string]string) error {
	if err := EnsureParentDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keyFile{Keys: keys}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

func readKeyFile(path string) (keyFile, error) {
	var kf keyFile
	b, err := os.ReadFile(path)
	if err != nil {
		return kf, fmt.Errorf("failed to read key file: %w", err)
	}
	if err := json.Unmarshal(b, &kf); err != nil {
		return kf, fmt.Errorf("failed to parse key file: %w", err)
	}
	return kf, nil
}
