// Package storage handles persistence of subscriptions and cached schedules.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: object doesn't exist")
	// ErrInvalidKey is returned for key segments that could escape their namespace.
	ErrInvalidKey = errors.New("storage: invalid key")

	segmentRegex = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,128}$`)
)

const (
	hashPrefix   = "subscriptions"
	blobPrefix   = "schedules"
	keySuffix    = ".json"
	keySeparator = "/"
)

// Backend is a flat key/value object store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Store lays out hash maps and TTL blobs on top of a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a new storage handler.
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// IsNotFound checks if an error indicates a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func validSegment(s string) bool {
	return segmentRegex.MatchString(s) && s != "." && s != ".."
}

// HashKey returns the object key for field in hash.
func HashKey(hash, field string) (string, error) {
	if !validSegment(hash) || !validSegment(field) {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidKey, hash, field)
	}
	return strings.Join([]string{hashPrefix, hash, field + keySuffix}, keySeparator), nil
}

func hashDir(hash string) (string, error) {
	if !validSegment(hash) {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, hash)
	}
	return strings.Join([]string{hashPrefix, hash, ""}, keySeparator), nil
}

// HashSet writes one field of a hash.
func (s *Store) HashSet(ctx context.Context, hash, field string, value []byte) error {
	key, err := HashKey(hash, field)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.logger.Debug("Hash field saved", "hash", hash, "field", field, "bytes", len(value))
	return nil
}

// HashGet reads one field of a hash.
func (s *Store) HashGet(ctx context.Context, hash, field string) ([]byte, error) {
	key, err := HashKey(hash, field)
	if err != nil {
		return nil, err
	}
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// HashDelete removes one field of a hash. Deleting a missing field is not an error.
func (s *Store) HashDelete(ctx context.Context, hash, field string) error {
	key, err := HashKey(hash, field)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.logger.Debug("Hash field deleted", "hash", hash, "field", field)
	return nil
}

// HashAll reads every field of a hash. Fields that vanish between listing and reading are skipped.
func (s *Store) HashAll(ctx context.Context, hash string) (map[string][]byte, error) {
	dir, err := hashDir(hash)
	if err != nil {
		return nil, err
	}
	keys, err := s.backend.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		field := strings.TrimSuffix(strings.TrimPrefix(key, dir), keySuffix)
		if field == "" || strings.Contains(field, keySeparator) {
			continue
		}
		data, err := s.backend.Get(ctx, key)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			s.logger.Warn("Failed to load hash field", "key", key, "error", err)
			continue
		}
		out[field] = data
	}
	return out, nil
}

type blobEnvelope struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Data      json.RawMessage `json:"data"`
}

// SetBlob stores v under name, valid for ttl.
func (s *Store) SetBlob(ctx context.Context, name string, v any, ttl time.Duration) error {
	if !validSegment(name) {
		return fmt.Errorf("%w: %s", ErrInvalidKey, name)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal blob: %w", err)
	}
	env, err := json.Marshal(blobEnvelope{ExpiresAt: s.now().Add(ttl), Data: data})
	if err != nil {
		return fmt.Errorf("marshal blob envelope: %w", err)
	}
	key := blobPrefix + keySeparator + name + keySuffix
	if err := s.backend.Put(ctx, key, env); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Blob loads a fresh blob into v. It reports false when the blob is missing or expired.
func (s *Store) Blob(ctx context.Context, name string, v any) (bool, error) {
	if !validSegment(name) {
		return false, fmt.Errorf("%w: %s", ErrInvalidKey, name)
	}
	key := blobPrefix + keySeparator + name + keySuffix
	raw, err := s.backend.Get(ctx, key)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	var env blobEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("unmarshal blob envelope: %w", err)
	}
	if !s.now().Before(env.ExpiresAt) {
		s.logger.Debug("Cached blob expired", "name", name, "expired_at", env.ExpiresAt.Format(time.RFC3339))
		return false, nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return false, fmt.Errorf("unmarshal blob: %w", err)
	}
	return true, nil
}
