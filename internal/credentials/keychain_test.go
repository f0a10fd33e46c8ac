package credentials

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/dvcrn/responses-bridge/internal/decode"
)

func stubSecurity(t *testing.T, fn func(args ...string) ([]byte, error)) {
	t.Helper()
	orig := runSecurity
	runSecurity = fn
	t.Cleanup(func() { runSecurity = orig })
}

func TestKeychainCredentialsFetcher(t *testing.T) {
	fetcher := NewKeychainCredentialsFetcher(decode.Gemini)
	defer fetcher.Close()

	if fetcher.cacheTTL != 5*time.Minute {
		t.Errorf("Expected cacheTTL to be 5 minutes, got %v", fetcher.cacheTTL)
	}
	if fetcher.stopCh == nil {
		t.Error("Expected stopCh to be created")
	}
}

func TestKeychainCredentialsFetcher_Lookup(t *testing.T) {
	calls := 0
	stubSecurity(t, func(args ...string) ([]byte, error) {
		calls++
		if args[0] != "find-generic-password" || !slices.Contains(args, "openai") || !slices.Contains(args, KeychainService) {
			t.Fatalf("unexpected security args %v", args)
		}
		return []byte("sk-keychain\n"), nil
	})

	fetcher := NewKeychainCredentialsFetcher(decode.OpenAI)
	defer fetcher.Close()

	for range 3 {
		key, err := fetcher.GetCredentials()
		if err != nil || key != "sk-keychain" {
			t.Fatalf("GetCredentials = %q, %v", key, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected one keychain lookup while cached, got %d", calls)
	}
}

func TestKeychainCredentialsFetcher_Errors(t *testing.T) {
	stubSecurity(t, func(args ...string) ([]byte, error) {
		return []byte("  \n"), nil
	})
	fetcher := NewKeychainCredentialsFetcher(decode.Anthropic)
	defer fetcher.Close()

	if _, err := fetcher.GetCredentials(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Expected ErrNoCredentials, got %v", err)
	}

	stubSecurity(t, func(args ...string) ([]byte, error) {
		return nil, errors.New("exit status 44")
	})
	if err := fetcher.RefreshCredentials(); err == nil {
		t.Fatal("Expected a keychain error")
	}
}

func TestKeychainCredentialsFetcher_UpdateKey(t *testing.T) {
	var got []string
	stubSecurity(t, func(args ...string) ([]byte, error) {
		got = args
		return nil, nil
	})
	fetcher := NewKeychainCredentialsFetcher(decode.Gemini)
	defer fetcher.Close()

	if err := fetcher.UpdateKey("AIza-new"); err != nil {
		t.Fatalf("UpdateKey failed: %v", err)
	}
	if got[0] != "add-generic-password" || got[len(got)-1] != "AIza-new" {
		t.Errorf("unexpected security args %v", got)
	}
	if key, _ := fetcher.GetCredentials(); key != "AIza-new" {
		t.Errorf("Expected cached key after update, got %q", key)
	}
}
