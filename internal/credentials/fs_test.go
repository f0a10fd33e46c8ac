package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvcrn/responses-bridge/internal/decode"
)

func TestFSCredentialsFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keys.json")
	if err := WriteKeyFile(path, map[string]string{"openai": "sk-one"}); err != nil {
		t.Fatalf("WriteKeyFile failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat key file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected permissions 0600, got %v", info.Mode().Perm())
	}

	f := NewFSCredentialsFetcher(path, decode.OpenAI)
	key, err := f.GetCredentials()
	if err != nil || key != "sk-one" {
		t.Fatalf("GetCredentials = %q, %v", key, err)
	}

	// Cached until refreshed.
	if err := WriteKeyFile(path, map[string]string{"openai": "sk-two"}); err != nil {
		t.Fatalf("WriteKeyFile failed: %v", err)
	}
	if key, _ := f.GetCredentials(); key != "sk-one" {
		t.Errorf("Expected cached key, got %q", key)
	}
	if err := f.RefreshCredentials(); err != nil {
		t.Fatalf("RefreshCredentials failed: %v", err)
	}
	if key, _ := f.GetCredentials(); key != "sk-two" {
		t.Errorf("Expected refreshed key, got %q", key)
	}

	if _, err := NewFSCredentialsFetcher(path, decode.Gemini).GetCredentials(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials for a provider without a key, got %v", err)
	}
}

func TestFSCredentialsFetcher_UpdateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	gemini := NewFSCredentialsFetcher(path, decode.Gemini)
	if err := gemini.UpdateKey("AIza-1"); err != nil {
		t.Fatalf("UpdateKey on a missing file failed: %v", err)
	}
	anthropic := NewFSCredentialsFetcher(path, decode.Anthropic)
	if err := anthropic.UpdateKey("sk-ant"); err != nil {
		t.Fatalf("UpdateKey failed: %v", err)
	}

	fresh := NewFSCredentialsFetcher(path, decode.Gemini)
	if key, err := fresh.GetCredentials(); err != nil || key != "AIza-1" {
		t.Fatalf("Expected gemini key to survive, got %q, %v", key, err)
	}

	var _ KeyUpdater = gemini
}

func TestFSCredentialsFetcher_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFSCredentialsFetcher(path, decode.OpenAI).GetCredentials(); err == nil {
		t.Fatal("Expected a parse error")
	}
}
