package trcsession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session in a Redis hash, with attribute values
// encoded as JSON. Values read back are the result of decoding that JSON:
// objects become map[string]any, which attribute paths can traverse, and
// numbers become [json.Number].
//
// Each access to a session extends its TTL, if a TTL is configured.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisStoreConfig captures the configuration parameters for a Redis store.
type RedisStoreConfig struct {
	// Client is required.
	Client redis.UniversalClient

	// Prefix is prepended to every session ID to form the hash key. If not
	// provided, the DefaultRedisPrefix is used.
	Prefix string

	// TTL of idle sessions. Zero means sessions don't expire.
	TTL time.Duration
}

// DefaultRedisPrefix is the key prefix used when none is provided.
const DefaultRedisPrefix = "trcsession:"

// createdField marks the existence of a session whose hash would otherwise be
// empty, as Redis deletes empty hashes. It can't collide with attribute names,
// which are rejected if they begin with a NUL byte.
const createdField = "\x00created"

// NewRedisStore returns a Redis store with the given config.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("invalid TTL %s", cfg.TTL)
	}

	return &RedisStore{
		client: cfg.Client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, id string) error {
	key := s.key(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, createdField, strconv.FormatInt(time.Now().Unix(), 10))
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	if n > 0 {
		s.touch(ctx, id)
	}
	return n > 0, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id, name string) (any, bool, error) {
	if !validAttributeName(name) {
		return nil, false, nil
	}

	key := s.key(id)
	data, err := s.client.HGet(ctx, key, name).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		exists, err := s.Exists(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if !exists {
			return nil, false, ErrNoSession
		}
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("get attribute: %w", err)
	}

	s.touch(ctx, id)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, false, fmt.Errorf("decode attribute %s: %w", name, err)
	}

	return value, value != nil, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, id, name string, value any) error {
	if !validAttributeName(name) {
		return fmt.Errorf("invalid attribute name %q", name)
	}

	key := s.key(id)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return ErrNoSession
	}

	if value == nil {
		if err := s.client.HDel(ctx, key, name).Err(); err != nil {
			return fmt.Errorf("delete attribute: %w", err)
		}
		s.touch(ctx, id)
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode attribute %s: %w", name, err)
	}

	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, name, data)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("set attribute: %w", err)
	}

	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// touch extends the TTL of the session. Errors are ignored: the worst case is
// a session that expires early.
func (s *RedisStore) touch(ctx context.Context, id string) {
	if s.ttl <= 0 {
		return
	}
	s.client.Expire(ctx, s.key(id), s.ttl)
}

func validAttributeName(name string) bool {
	return name != "" && name[0] != 0
}
