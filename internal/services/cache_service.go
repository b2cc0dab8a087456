package services

import (
	"context"
	"time"

	"ridelink/pkg/cache"
)

// CacheService is the redis-backed cache used for hot documents, presence
// throttling and per-driver ride-decline sets.
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)

	SAdd(ctx context.Context, key string, members ...interface{}) error
	SRem(ctx context.Context, key string, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key string, member interface{}) (bool, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

type cacheService struct {
	redis *cache.RedisCache
}

func NewCacheService(redis *cache.RedisCache) CacheService {
	return &cacheService{redis: redis}
}

func (s *cacheService) Get(ctx context.Context, key string, dest interface{}) error {
	return s.redis.Get(ctx, key, dest)
}

func (s *cacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.redis.Set(ctx, key, value, expiration)
}

func (s *cacheService) Delete(ctx context.Context, keys ...string) error {
	return s.redis.Delete(ctx, keys...)
}

func (s *cacheService) Exists(ctx context.Context, key string) (bool, error) {
	return s.redis.Exists(ctx, key)
}

func (s *cacheService) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, key, value, expiration)
}

func (s *cacheService) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return s.redis.SAdd(ctx, key, members...)
}

func (s *cacheService) SRem(ctx context.Context, key string, members ...interface{}) error {
	return s.redis.SRem(ctx, key, members...)
}

func (s *cacheService) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.redis.SMembers(ctx, key)
}

func (s *cacheService) SIsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	return s.redis.SIsMember(ctx, key, member)
}

func (s *cacheService) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return s.redis.Expire(ctx, key, expiration)
}
