// Package cache puts an in-memory read-through cache in front of post reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/google/uuid"

	"github.com/iudanet/gophblog/internal/models"
	"github.com/iudanet/gophblog/internal/server/storage"
)

// maxCacheMB bounds the memory held by cached posts
const maxCacheMB = 64

var _ storage.Storage = (*Storage)(nil)

// Storage caches GetPost results by id. Writes go straight to the
// wrapped store and drop the cached copy, so a reader on this instance
// never sees a post older than its last update.
//
// Every write bumps epoch. A read only fills the cache if no write
// finished while it was loading, so a load that raced an update cannot
// put the pre-update post back.
type Storage struct {
	storage.Storage
	cache     *bigcache.BigCache
	logger    *slog.Logger
	mu        sync.Mutex
	epoch     uint64
	closeOnce sync.Once
	closeErr  error
}

// New wraps next; entries live for ttl
func New(next storage.Storage, ttl time.Duration, logger *slog.Logger) (*Storage, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}

	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = ttl
	cfg.HardMaxCacheSize = maxCacheMB

	c, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create post cache: %w", err)
	}

	return &Storage{Storage: next, cache: c, logger: logger}, nil
}

// GetPost serves from the cache, loading from the wrapped store on a miss
func (s *Storage) GetPost(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	key := postID.String()

	if data, err := s.cache.Get(key); err == nil {
		var post models.Post
		if err := json.Unmarshal(data, &post); err == nil {
			return &post, nil
		}
		s.logger.WarnContext(ctx, "dropping undecodable cached post", slog.String("post_id", key))
		_ = s.cache.Delete(key)
	}

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	post, err := s.Storage.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	s.remember(ctx, post, epoch)
	return post, nil
}

// UpdatePost writes through and invalidates the cached copy
// before and after the write
func (s *Storage) UpdatePost(ctx context.Context, post *models.Post) error {
	s.forget(post.ID)
	err := s.Storage.UpdatePost(ctx, post)
	s.forget(post.ID)
	return err
}

// Close releases the cache and the wrapped store; later calls are no-ops
func (s *Storage) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.cache.Close(), s.Storage.Close())
	})
	return s.closeErr
}

// Len reports the number of cached posts
func (s *Storage) Len() int {
	return s.cache.Len()
}

// remember caches post unless a write finished after epoch was read
func (s *Storage) remember(ctx context.Context, post *models.Post, epoch uint64) {
	data, err := json.Marshal(post)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	if err := s.cache.Set(post.ID.String(), data); err != nil {
		s.logger.WarnContext(ctx, "failed to cache post",
			slog.String("post_id", post.ID.String()),
			slog.Any("error", err))
	}
}

func (s *Storage) forget(postID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if err := s.cache.Delete(postID.String()); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		s.logger.Warn("failed to invalidate cached post",
			slog.String("post_id", postID.String()),
			slog.Any("error", err))
	}
}
