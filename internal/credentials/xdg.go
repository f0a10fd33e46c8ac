package credentials

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvcrn/responses-bridge/internal/env"
)

const (
	appDirName  = "responses-bridge"
	keyFileName = "keys.json"
	// KeyFileEnv overrides the key file location.
	KeyFileEnv = "RESPONSES_BRIDGE_KEY_FILE"
)

// configDir resolves $XDG_CONFIG_HOME, falling back to ~/.config.
func configDir() (string, error) {
	if dir, ok := env.Get("XDG_CONFIG_HOME"); ok && dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config"), nil
}

// DefaultKeyFilePath is where the file source keeps provider keys. An empty
// string means no location could be resolved.
func DefaultKeyFilePath() string {
	if p, ok := env.Get(KeyFileEnv); ok && p != "" {
		return p
	}
	dir, err := configDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDirName, keyFileName)
}

// EnsureParentDir creates the key file's directory, private to the user.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create key directory %s: %w", dir, err)
	}
	return nil
}
