//go:build js && wasm

package credentials

import (
	"fmt"

	"github.com/dvcrn/responses-bridge/internal/decode"
	"github.com/syumai/workers/cloudflare/kv"
)

// KVNamespace is the binding name configured in wrangler.toml.
const KVNamespace = "responses_bridge_kv"

// CloudflareKVFetcher retrieves the key from Cloudflare KV under
// "api_key:<provider>".
type CloudflareKVFetcher struct {
	kvStore  *kv.Namespace
	provider decode.Provider
}

// NewCloudflareKVFetcher creates a new Cloudflare KV-based credentials fetcher
func NewCloudflareKVFetcher(provider decode.Provider) (*CloudflareKVFetcher, error) {
	kvStore, err := kv.NewNamespace(KVNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &CloudflareKVFetcher{kvStore: kvStore, provider: provider}, nil
}

func (c *CloudflareKVFetcher) key() string {
	return "api_key:" + string(c.provider)
}

func (c *CloudflareKVFetcher) GetCredentials() (string, error) {
	apiKey, err := c.kvStore.GetString(c.key(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to get credentials from KV: %w", err)
	}
	if apiKey == "" {
		return "", fmt.Errorf("%w: KV key %s is empty", ErrNoCredentials, c.key())
	}
	return apiKey, nil
}

// RefreshCredentials is a no-op; every read goes to KV.
func (c *CloudflareKVFetcher) RefreshCredentials() error {
	return nil
}

func (c *CloudflareKVFetcher) Source() string { return "cloudflare-kv" }

func (c *CloudflareKVFetcher) UpdateKey(apiKey string) error {
	if err := c.kvStore.PutString(c.key(), apiKey, nil); err != nil {
		return fmt.Errorf("failed to store credentials in KV: %w", err)
	}
	return nil
}
