/*
Package credstore persists the session credentials (access token and cached user record)
across process restarts.

The token and the user are always written and cleared together. Implementations exist
for a JSON file (the default), process memory, and Redis.
*/
package credstore

import (
	"context"
	"errors"
	"strings"
	"sync"

	"localmart/internal/app/user"
)

// Persisted key names, shared by every backend.
const (
	KeyAccessToken = "access_token"
	KeyUserData    = "user_data"
)

var (
	// ErrNoCredentials is returned by Load when nothing is stored.
	ErrNoCredentials = errors.New("credstore: no stored credentials")

	// ErrIncomplete is returned by Load when only one of token and user is stored.
	ErrIncomplete = errors.New("credstore: stored credentials are incomplete")

	// ErrInvalidCredentials is returned by Save for a pair missing its token or user.
	ErrInvalidCredentials = errors.New("credstore: token and user must be saved together")
)

// Credentials is the persisted session pair.
type Credentials struct {
	AccessToken string     `json:"access_token"`
	User        *user.User `json:"user_data"`
}

func (c Credentials) validate() error {
	if c.AccessToken == "" || c.User == nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Store defines the public interface of a credential backend.
type Store interface {
	// Load returns the stored pair, ErrNoCredentials when empty, or ErrIncomplete.
	Load(ctx context.Context) (*Credentials, error)

	// Save replaces the stored pair atomically.
	Save(ctx context.Context, creds Credentials) error

	// Clear removes both entries. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	// AccessToken returns the stored token, or "" when there is none.
	AccessToken(ctx context.Context) (string, error)
}

// Open is the factory for Store. location is "memory", a redis:// (or rediss://) URL,
// or a file path.
func Open(ctx context.Context, location string) (Store, error) {
	switch {
	case location == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		return NewRedisStoreFromURL(ctx, location, DefaultRedisPrefix)
	default:
		return NewFileStore(location), nil
	}
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds == nil {
		return nil, ErrNoCredentials
	}
	u := *s.creds.User
	return &Credentials{AccessToken: s.creds.AccessToken, User: &u}, nil
}

func (s *MemoryStore) Save(ctx context.Context, creds Credentials) error {
	if err := creds.validate(); err != nil {
		return err
	}

	u := *creds.User
	s.mu.Lock()
	s.creds = &Credentials{AccessToken: creds.AccessToken, User: &u}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.creds = nil
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds == nil {
		return "", nil
	}
	return s.creds.AccessToken, nil
}
