package bonus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a CountStore kept in Redis, so that parallel rollout
// workers share the same counts. Counts are plain integer keys named
// <prefix>:<table>:<key>, and the distinct keys of a table are
// estimated with a HyperLogLog named <prefix>:<table>:distinct.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore returns a RedisStore using client with keys under
// prefix
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(table int, k uint64) string {
	return fmt.Sprintf("%v:%d:%d", r.prefix, table, k)
}

func (r *RedisStore) distinctKey(table int) string {
	return fmt.Sprintf("%v:%d:distinct", r.prefix, table)
}

// Inc implements the CountStore interface
func (r *RedisStore) Inc(ctx context.Context, table int,
	keys []uint64) error {
	if len(keys) == 0 {
		return nil
	}

	increments := make(map[uint64]int64)
	for _, k := range keys {
		increments[k]++
	}

	members := make([]interface{}, 0, len(increments))
	pipe := r.client.Pipeline()
	for k, n := range increments {
		pipe.IncrBy(ctx, r.key(table, k), n)
		members = append(members, k)
	}
	pipe.PFAdd(ctx, r.distinctKey(table), members...)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("inc: %w", err)
	}
	return nil
}

// Counts implements the CountStore interface
func (r *RedisStore) Counts(ctx context.Context, table int,
	keys []uint64) ([]int, error) {
	counts := make([]int, len(keys))
	if len(keys) == 0 {
		return counts, nil
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = r.key(table, k)
	}
	values, err := r.client.MGet(ctx, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if counts[i], err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("counts: key %v: %w", names[i], err)
		}
	}
	return counts, nil
}

// Distinct implements the CountStore interface
func (r *RedisStore) Distinct(ctx context.Context, table int) (int, error) {
	n, err := r.client.PFCount(ctx, r.distinctKey(table)).Result()
	if err != nil {
		return 0, fmt.Errorf("distinct: %w", err)
	}
	return int(n), nil
}
