// Package tokenstore persists the opaque chat session token. One string
// under one key: absent means unauthenticated.
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store reads and writes the persisted session token. Load returns an
// empty string when no token is stored.
type Store interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileStore keeps the token in a single file. Suitable for embedded
// single-visitor deployments (kiosk, desktop shell).
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored token.
func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token, creating parent directories as needed.
func (s *FileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Clear removes the stored token.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Registry holds tokens for many visitors in memory. The gateway scopes
// one Store per visitor key; last write wins, which is acceptable because
// token rotation is monotonic.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]string)}
}

// Scoped returns the Store view for one visitor key.
func (r *Registry) Scoped(key string) Store {
	return &scopedStore{registry: r, key: key}
}

type scopedStore struct {
	registry *Registry
	key      string
}

func (s *scopedStore) Load() (string, error) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	return s.registry.tokens[s.key], nil
}

func (s *scopedStore) Save(token string) error {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	s.registry.tokens[s.key] = token
	return nil
}

func (s *scopedStore) Clear() error {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	delete(s.registry.tokens, s.key)
	return nil
}
