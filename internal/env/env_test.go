package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Setenv("BRIDGE_TEST_SET", "value")
	t.Setenv("BRIDGE_TEST_BLANK", "  ")

	v, ok := Get("BRIDGE_TEST_SET")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = Get("BRIDGE_TEST_BLANK")
	assert.False(t, ok)

	assert.Equal(t, "fallback", GetOr("BRIDGE_TEST_UNSET_KEY", "fallback"))
}

func TestIntAndBool(t *testing.T) {
	t.Setenv("BRIDGE_TEST_INT", " 42 ")
	t.Setenv("BRIDGE_TEST_BAD_INT", "forty")
	t.Setenv("BRIDGE_TEST_BOOL", "true")

	n, err := Int("BRIDGE_TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = Int("BRIDGE_TEST_BAD_INT", 7)
	assert.Error(t, err)
	assert.Equal(t, 7, n)

	n, err = Int("BRIDGE_TEST_UNSET_INT", 9)
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	assert.True(t, Bool("BRIDGE_TEST_BOOL"))
	assert.False(t, Bool("BRIDGE_TEST_UNSET_BOOL"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BRIDGE_TEST_FROM_FILE=loaded\nBRIDGE_TEST_PRESET=file\n"), 0o600))

	t.Setenv("BRIDGE_TEST_PRESET", "process")
	t.Cleanup(func() { os.Unsetenv("BRIDGE_TEST_FROM_FILE") })

	require.NoError(t, Load(path, filepath.Join(dir, "missing.env")))

	v, _ := Get("BRIDGE_TEST_FROM_FILE")
	assert.Equal(t, "loaded", v)
	v, _ = Get("BRIDGE_TEST_PRESET")
	assert.Equal(t, "process", v)
}
