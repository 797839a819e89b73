// Package blob is the attachment storage collaborator: raw file bytes in,
// opaque cache keys out. When the backend is unavailable and the payload is
// small, uploads degrade to an inline data-URL preview instead of failing
// the message.
package blob

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/persistence"
)

// ErrNotFound reports a cache key with no stored payload.
var ErrNotFound = fmt.Errorf("attachment not found")

// Storage stores and fetches attachment payloads.
type Storage interface {
	Put(ctx context.Context, name, mimeType string, data []byte) (domain.Attachment, error)
	Get(ctx context.Context, cacheKey string) ([]byte, error)
}

// RedisStorage keeps attachment payloads under namespaced Redis keys.
type RedisStorage struct {
	kv          persistence.KV
	inlineLimit int
	logger      *zap.Logger
}

// NewRedisStorage builds storage over the shared KV medium. inlineLimit
// bounds the payload size eligible for the inline-preview fallback.
func NewRedisStorage(kv persistence.KV, inlineLimit int, logger *zap.Logger) *RedisStorage {
	return &RedisStorage{kv: kv, inlineLimit: inlineLimit, logger: logger}
}

// Put stores the payload and returns its descriptor. On backend failure a
// small payload falls back to an inline preview; a large one surfaces the
// error to the caller.
func (s *RedisStorage) Put(ctx context.Context, name, mimeType string, data []byte) (domain.Attachment, error) {
	att := domain.Attachment{
		ID:       uuid.NewString(),
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}

	key := persistence.BlobKeyPrefix + att.ID
	if err := s.kv.Set(ctx, key, data); err != nil {
		if len(data) <= s.inlineLimit {
			s.logger.Warn("blob backend unavailable, inlining preview", zap.Error(err))
			att.Preview = dataURL(mimeType, data)
			return att, nil
		}
		return domain.Attachment{}, err
	}

	att.CacheKey = key
	return att, nil
}

// Get returns the payload behind a cache key.
func (s *RedisStorage) Get(ctx context.Context, cacheKey string) ([]byte, error) {
	data, err := s.kv.Get(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return data, nil
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// MemoryStorage is an in-process Storage for tests.
type MemoryStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

// Put stores the payload in memory.
func (s *MemoryStorage) Put(_ context.Context, name, mimeType string, data []byte) (domain.Attachment, error) {
	att := domain.Attachment{
		ID:       uuid.NewString(),
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}
	key := persistence.BlobKeyPrefix + att.ID
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.blobs[key] = stored
	s.mu.Unlock()

	att.CacheKey = key
	return att, nil
}

// Get returns the stored payload.
func (s *MemoryStorage) Get(_ context.Context, cacheKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[cacheKey]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
