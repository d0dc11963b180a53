package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps credentials in one JSON document:
//
//	{"access_token": "...", "user_data": {...}}
//
// Writes go to a temporary file that is renamed over the document, so readers see
// either the old pair or the new one.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore at path. The file and its directory are created on Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) read() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: read %s: %w", s.path, err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("credstore: decode %s: %w", s.path, err)
	}
	return &creds, nil
}

func (s *FileStore) Load(ctx context.Context) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.read()
	if err != nil {
		return nil, err
	}

	switch {
	case creds.AccessToken == "" && creds.User == nil:
		return nil, ErrNoCredentials
	case creds.AccessToken == "" || creds.User == nil:
		return nil, ErrIncomplete
	}
	return creds, nil
}

func (s *FileStore) Save(ctx context.Context, creds Credentials) error {
	if err := creds.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("credstore: encode credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credstore: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("credstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credstore: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("credstore: replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("credstore: remove %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.read()
	if errors.Is(err, ErrNoCredentials) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}
