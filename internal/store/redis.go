package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the Store contract with github.com/redis/go-redis/v9, the live
// DurableStore implementation for positions, orders, session P&L, and the
// LTP crash-recovery snapshot.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing *redis.Client. Connection options (addr,
// password, DB index, TLS) are the caller's concern via redis.Options,
// mirroring how the pack's bots construct their client once at startup.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Dial is a convenience constructor for the common case of a single addr.
func Dial(addr, password string, db int) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return r.client.HSet(ctx, key, args...).Err()
}

func (r *Redis) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := r.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SAdd(ctx, key, args...).Err()
}

func (r *Redis) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SRem(ctx, key, args...).Err()
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *Redis) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return r.client.LPush(ctx, key, args...).Err()
}

func (r *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

func (r *Redis) LTrim(ctx context.Context, key string, start, stop int64) error {
	return r.client.LTrim(ctx, key, start, stop).Err()
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

type redisTx struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (tx redisTx) HSet(key string, fields map[string]string) error {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return tx.pipe.HSet(tx.ctx, key, args...).Err()
}

func (tx redisTx) SAdd(key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return tx.pipe.SAdd(tx.ctx, key, args...).Err()
}

func (tx redisTx) SRem(key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return tx.pipe.SRem(tx.ctx, key, args...).Err()
}

func (tx redisTx) LPush(key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return tx.pipe.LPush(tx.ctx, key, args...).Err()
}

// Atomic groups writes in a single pipelined transaction (MULTI/EXEC) so
// they apply all-or-nothing, per spec.md §4.3 and §5's DurableStore rule.
func (r *Redis) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(redisTx{ctx: ctx, pipe: pipe})
	})
	return err
}

// TryLock implements locks:<name> as a SET NX PX, the canonical Redis
// distributed-lock primitive.
func (r *Redis) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	key := "locks:" + name
	return r.client.SetNX(ctx, key, "1", ttl).Result()
}

func (r *Redis) Unlock(ctx context.Context, name string) error {
	return r.client.Del(ctx, "locks:"+name).Err()
}

// Idempotent implements idemp:<key> the same way: the first SETNX to
// succeed is the canonical attempt, later ones within the TTL are replays.
func (r *Redis) Idempotent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, "idemp:"+key, "1", ttl).Result()
}
