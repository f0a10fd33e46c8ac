package credentials

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/dvcrn/responses-bridge/internal/decode"
	"github.com/rs/zerolog"
)

// KeychainService is the macOS keychain service the keys are stored under;
// the account is the provider name.
const KeychainService = "responses-bridge"

// runSecurity executes the macOS security tool.
var runSecurity = func(args ...string) ([]byte, error) {
	return exec.Command("security", args...).Output()
}

// KeychainCredentialsFetcher retrieves the key from the macOS keychain with caching
type KeychainCredentialsFetcher struct {
	provider decode.Provider

	mu          sync.RWMutex
	cachedKey   string
	lastRefresh time.Time
	cacheTTL    time.Duration
	stopCh      chan struct{}
	logger      *zerolog.Logger
}

// NewKeychainCredentialsFetcher creates a new keychain-based credentials fetcher
func NewKeychainCredentialsFetcher(provider decode.Provider) *KeychainCredentialsFetcher {
	f := &KeychainCredentialsFetcher{
		provider: provider,
		cacheTTL: 5 * time.Minute,
		stopCh:   make(chan struct{}),
	}
	go f.backgroundRefresh()
	return f
}

// NewKeychainCredentialsFetcherWithLogger creates a new keychain-based credentials fetcher with logger
func NewKeychainCredentialsFetcherWithLogger(provider decode.Provider, logger zerolog.Logger) *KeychainCredentialsFetcher {
	f := NewKeychainCredentialsFetcher(provider)
	f.logger = &logger
	return f
}

// GetCredentials retrieves the key from cache or keychain
func (k *KeychainCredentialsFetcher) GetCredentials() (string, error) {
	k.mu.RLock()
	if k.cachedKey != "" && time.Since(k.lastRefresh) < k.cacheTTL {
		key := k.cachedKey
		k.mu.RUnlock()
		return key, nil
	}
	k.mu.RUnlock()
	return k.refreshAndGet()
}

// RefreshCredentials forces a fresh fetch from keychain
func (k *KeychainCredentialsFetcher) RefreshCredentials() error {
	_, err := k.refreshAndGet()
	return err
}

func (k *KeychainCredentialsFetcher) Source() string { return "keychain" }

// UpdateKey stores a new key in the keychain, replacing the existing entry.
func (k *KeychainCredentialsFetcher) UpdateKey(apiKey string) error {
	if _, err := runSecurity("add-generic-password", "-U", "-s", KeychainService, "-a", string(k.provider), "-w", apiKey); err != nil {
		return fmt.Errorf("failed to update keychain: %w", err)
	}
	k.mu.Lock()
	k.cachedKey = apiKey
	k.lastRefresh = time.Now()
	k.mu.Unlock()
	return nil
}

func (k *KeychainCredentialsFetcher) refreshAndGet() (string, error) {
	out, err := runSecurity("find-generic-password", "-s", KeychainService, "-a", string(k.provider), "-w")
	if err != nil {
		return "", fmt.Errorf("failed to retrieve password from Keychain: %w", err)
	}
	key := strings.TrimSpace(string(out))
	if key == "" {
		return "", fmt.Errorf("%w: keychain entry %s/%s is empty", ErrNoCredentials, KeychainService, k.provider)
	}
	k.mu.Lock()
	k.cachedKey = key
	k.lastRefresh = time.Now()
	k.mu.Unlock()
	return key, nil
}

func (k *KeychainCredentialsFetcher) backgroundRefresh() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := k.RefreshCredentials()
			if k.logger != nil {
				if err != nil {
					k.logger.Error().Err(err).Msg("Failed to refresh credentials from keychain")
				} else {
					k.logger.Debug().Msg("Refreshed credentials from keychain")
				}
			}
		case <-k.stopCh:
			return
		}
	}
}

// Close stops the background refresh goroutine
func (k *KeychainCredentialsFetcher) Close() {
	close(k.stopCh)
}
