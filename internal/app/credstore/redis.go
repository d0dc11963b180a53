package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"localmart/internal/app/user"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the credential keys.
const DefaultRedisPrefix = "localmart:session:"

// RedisStore keeps credentials in two Redis string keys, written and deleted in one
// MULTI/EXEC transaction.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// NewRedisStoreFromURL connects to rawURL and pings the server with a short timeout.
func NewRedisStoreFromURL(ctx context.Context, rawURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("credstore: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("credstore: ping redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStore(rdb, prefix), nil
}

func (s *RedisStore) tokenKey() string { return s.prefix + KeyAccessToken }
func (s *RedisStore) userKey() string  { return s.prefix + KeyUserData }

func (s *RedisStore) Load(ctx context.Context) (*Credentials, error) {
	values, err := s.rdb.MGet(ctx, s.tokenKey(), s.userKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("credstore: redis mget: %w", err)
	}

	token, _ := values[0].(string)
	userData, _ := values[1].(string)

	switch {
	case token == "" && userData == "":
		return nil, ErrNoCredentials
	case token == "" || userData == "":
		return nil, ErrIncomplete
	}

	var u user.User
	if err := json.Unmarshal([]byte(userData), &u); err != nil {
		return nil, fmt.Errorf("credstore: decode %s: %w", s.userKey(), err)
	}
	return &Credentials{AccessToken: token, User: &u}, nil
}

func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	if err := creds.validate(); err != nil {
		return err
	}

	userData, err := json.Marshal(creds.User)
	if err != nil {
		return fmt.Errorf("credstore: encode user: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(), creds.AccessToken, 0)
		pipe.Set(ctx, s.userKey(), userData, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("credstore: redis save: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.tokenKey(), s.userKey()).Err(); err != nil {
		return fmt.Errorf("credstore: redis clear: %w", err)
	}
	return nil
}

func (s *RedisStore) AccessToken(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.tokenKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("credstore: redis get: %w", err)
	}
	return token, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
