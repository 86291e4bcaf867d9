package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestConfig(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	return s
}

func TestOpenWritesDefaults(t *testing.T) {
	s := openTestConfig(t)
	assert.Equal(t, DefaultMaxRetries, s.MaxRetries())
	assert.Equal(t, DefaultBackoffBase, s.BackoffBase())

	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, KeyMaxRetries)
	assert.Contains(t, m, KeyBackoffBase)
}

func TestSetRoundTrip(t *testing.T) {
	s := openTestConfig(t)
	require.NoError(t, s.Set(KeyMaxRetries, 5))
	assert.Equal(t, 5, s.MaxRetries())

	// A fresh handle sees the persisted value.
	h, err := Open(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 5, h.MaxRetries())
}

func TestSetRejectsUnknownKey(t *testing.T) {
	s := openTestConfig(t)
	err := s.Set("poll_interval", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestUnknownKeysPreservedAcrossSet(t *testing.T) {
	s := openTestConfig(t)
	raw := map[string]any{KeyMaxRetries: 4, "custom": "kept"}
	b, _ := json.Marshal(raw)
	require.NoError(t, os.WriteFile(s.Path(), b, 0o644))

	require.NoError(t, s.Set(KeyBackoffBase, 3))

	all := s.All()
	assert.Equal(t, "kept", all["custom"])
	assert.Equal(t, 4, s.MaxRetries())
	assert.Equal(t, 3, s.BackoffBase())
}

func TestCorruptFileFallsBackToDefaults(t *testing.T) {
	s := openTestConfig(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json at all"), 0o644))
	assert.Equal(t, DefaultMaxRetries, s.MaxRetries())
	assert.Equal(t, DefaultBackoffBase, s.BackoffBase())
}

func TestGetIntCoercions(t *testing.T) {
	s := openTestConfig(t)
	// JSON decoding yields float64; strings are coerced when numeric.
	b, _ := json.Marshal(map[string]any{KeyMaxRetries: 7.0, KeyBackoffBase: "4"})
	require.NoError(t, os.WriteFile(s.Path(), b, 0o644))
	assert.Equal(t, 7, s.MaxRetries())
	assert.Equal(t, 4, s.BackoffBase())
}

func TestEnvOverrides(t *testing.T) {
	s := openTestConfig(t)
	t.Setenv("QUEUECTL_MAX_RETRIES", "9")
	t.Setenv("QUEUECTL_BACKOFF_BASE", "bogus")

	maxRetries, backoffBase := FromEnv().Apply(s)
	assert.Equal(t, 9, maxRetries)
	assert.Equal(t, DefaultBackoffBase, backoffBase, "malformed env value ignored")
}

func TestDefaultDataDirHonorsEnv(t *testing.T) {
	t.Setenv("QUEUECTL_DATA_DIR", "/tmp/qd")
	assert.Equal(t, "/tmp/qd", DefaultDataDir())
}
