package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// Recognized keys. Set rejects anything else.
const (
	KeyMaxRetries  = "max_retries"
	KeyBackoffBase = "backoff_base"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2
)

// Keys lists the recognized keys in stable order.
func Keys() []string { return []string{KeyBackoffBase, KeyMaxRetries} }

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		KeyMaxRetries:  DefaultMaxRetries,
		KeyBackoffBase: DefaultBackoffBase,
	}
}

// Store is a handle to the config file. Reads always consult the file so
// that workers observe `config set` from other processes.
type Store struct {
	path string
	lock *flock.Flock
}

// Open ensures the config file exists (writing defaults on first run) and
// returns a handle.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	s := &Store{path: path, lock: flock.New(path + ".lock")}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(Defaults()); err != nil {
			return nil, fmt.Errorf("initialize config: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the config file path.
func (s *Store) Path() string { return s.path }

// read returns the raw file contents. Any failure (missing file, bad JSON,
// lock trouble) yields an empty map; callers overlay defaults on top.
func (s *Store) read() map[string]any {
	if err := s.lock.Lock(); err != nil {
		return map[string]any{}
	}
	b, err := os.ReadFile(s.path)
	_ = s.lock.Unlock()
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func (s *Store) write(m map[string]any) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock config: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	if err := atomic.WriteFile(s.path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// All returns defaults overlaid with whatever the file holds, including any
// unknown keys.
func (s *Store) All() map[string]any {
	out := Defaults()
	for k, v := range s.read() {
		out[k] = v
	}
	return out
}

// Get returns the value for key, or nil when absent.
func (s *Store) Get(key string) any {
	return s.All()[key]
}

// GetInt returns the integer value for key, falling back to def when the
// key is absent or not representable as an int.
func (s *Store) GetInt(key string, def int) int {
	switch v := s.All()[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// MaxRetries returns the default retry budget for new jobs.
func (s *Store) MaxRetries() int {
	return s.GetInt(KeyMaxRetries, DefaultMaxRetries)
}

// BackoffBase returns the exponential backoff base.
func (s *Store) BackoffBase() int {
	return s.GetInt(KeyBackoffBase, DefaultBackoffBase)
}

// Set stores value under key. Only the recognized keys are accepted; other
// keys already present in the file are carried along untouched.
func (s *Store) Set(key string, value any) error {
	if key != KeyMaxRetries && key != KeyBackoffBase {
		return fmt.Errorf("unknown config key %q (recognized: %v)", key, Keys())
	}
	m := s.All()
	m[key] = value
	return s.write(m)
}

// SortedKeys returns the keys of m in stable order, for display.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
