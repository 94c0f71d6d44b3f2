package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "operador:call:"
	redisIndexKey  = "operador:calls"
	defaultTTL     = 30 * 24 * time.Hour
)

// Redis stores records as JSON values with a TTL and keeps a sorted-set
// index by end time for Recent.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// OpenRedis parses a redis:// URL, connects and pings.
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

func (s *Redis) Save(ctx context.Context, rec CallRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.CallSID), val, s.ttl)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(rec.EndedAt.UnixMilli()), Member: rec.CallSID})
		return nil
	})
	return err
}

func (s *Redis) Get(ctx context.Context, callSID string) (CallRecord, error) {
	val, err := s.client.Get(ctx, s.key(callSID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CallRecord{}, ErrNotFound
	}
	if err != nil {
		return CallRecord{}, err
	}
	var rec CallRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return CallRecord{}, fmt.Errorf("decode call record %s: %w", callSID, err)
	}
	return rec, nil
}

// Recent reads the index newest first and prunes members whose record has expired.
func (s *Redis) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	sids, err := s.client.ZRevRange(ctx, redisIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]CallRecord, 0, len(sids))
	var stale []any
	for _, sid := range sids {
		rec, err := s.Get(ctx, sid)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, sid)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, redisIndexKey, stale...).Err()
	}
	return out, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) key(callSID string) string {
	return redisKeyPrefix + callSID
}
