// Package env reads process configuration. Outside the Workers runtime values
// come from the process environment, optionally seeded from .env files.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads the given .env files (".env" when none are named) into the
// process environment. Variables that are already set win. Missing files are
// ignored.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("env: load %s: %w", f, err)
		}
	}
	return nil
}

// Get returns the value of key and whether it is set to something non-empty.
func Get(key string) (string, bool) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// GetOr returns the value of key, or fallback when it is unset.
func GetOr(key, fallback string) string {
	if v, ok := Get(key); ok {
		return v
	}
	return fallback
}

// Int parses key as an integer. Unset yields fallback; a malformed value is
// an error.
func Int(key string, fallback int) (int, error) {
	v, ok := Get(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("env: %s: %w", key, err)
	}
	return n, nil
}

// Bool parses key as a boolean; unset or malformed values are false.
func Bool(key string) bool {
	v, ok := Get(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
