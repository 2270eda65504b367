// client/tokenstore.go
// Credential persistence for the session manager.
package client

import (
	"os"
	"path/filepath"
	"sync"
)

// tokenFileName is the fixed key the credential is persisted under.
const tokenFileName = "reviewflix_token"

// TokenStore persists the session credential between runs.
type TokenStore interface {
	Load() (string, error) // Returns "" with nil error when no credential is stored
	Save(token string) error
	Clear() error
}

// FileStore persists the credential as a file in a directory, under the
// fixed key name. Missing files read as an absent credential.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) path() string {
	return filepath.Join(f.dir, tokenFileName)
}

func (f *FileStore) Load() (string, error) {
	b, err := os.ReadFile(f.path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}

func (f *FileStore) Save(token string) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path(), []byte(token), 0o600)
}

func (f *FileStore) Clear() error {
	err := os.Remove(f.path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemoryStore holds the credential in memory. Intended for tests.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
