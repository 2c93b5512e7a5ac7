package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrBlacklistBackend = errors.New("blacklist backend unavailable")
)

// BlacklistStore tracks revoked access-token identifiers until their natural
// expiry. Each jti gets a value key with a TTL equal to the token's remaining
// lifetime, plus a membership entry in an expiry-scored index so sweeps can
// count what they remove.
type BlacklistStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewBlacklistStore(redisClient redis.UniversalClient, prefix string) *BlacklistStore {
	if prefix == "" {
		prefix = "bl"
	}
	return &BlacklistStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *BlacklistStore) key(jti string) string {
	return s.prefix + ":" + jti
}

func (s *BlacklistStore) indexKey() string {
	return s.prefix + ":idx"
}

// Add blacklists the jti until expiresAt. Already-expired tokens are ignored;
// there is nothing left to deny.
//
// The two writes ride one non-transactional pipeline: the value key and the
// index land in different cluster slots, so MULTI would be refused there. The
// value key's TTL is what enforces the deny; the index only feeds sweeps.
func (s *BlacklistStore) Add(ctx context.Context, jti string, expiresAt, now time.Time) error {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}

	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(jti), "1", ttl)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(expiresAt.UnixMilli()),
			Member: jti,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlacklistBackend, err)
	}
	return nil
}

// Contains reports whether the jti is currently blacklisted.
func (s *BlacklistStore) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBlacklistBackend, err)
	}
	return n > 0, nil
}

// PurgeExpired trims index entries whose expiry has passed and returns how
// many were removed. The value keys expire on their own TTLs; only the index
// needs explicit cleanup.
func (s *BlacklistStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.redis.ZRemRangeByScore(ctx, s.indexKey(), "-inf",
		strconv.FormatInt(now.UnixMilli(), 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBlacklistBackend, err)
	}
	return int(n), nil
}

// Count returns the number of index entries, including any not yet purged.
func (s *BlacklistStore) Count(ctx context.Context) (int64, error) {
	n, err := s.redis.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBlacklistBackend, err)
	}
	return n, nil
}

// Ping reports backend liveness.
func (s *BlacklistStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBlacklistBackend, err)
	}
	return nil
}
