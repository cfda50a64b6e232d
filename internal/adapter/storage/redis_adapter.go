package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idem:"
	pinTokenKeyPrefix    = "pin-token:"
	revokedKeyPrefix     = "revoked:"
	idempotencyKeyTTL    = 24 * time.Hour
)

var consumePinTokenScript = redis.NewScript(`
local owner = redis.call('GET', KEYS[1])
if owner and owner == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end

return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	return r.MarkOnce(ctx, idempotencyKeyPrefix+key, idempotencyKeyTTL)
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) StorePinToken(ctx context.Context, shopID, token string, ttl time.Duration) error {
	return r.client.Set(ctx, pinTokenKeyPrefix+token, shopID, ttl).Err()
}

func (r *RedisAdapter) ConsumePinToken(ctx context.Context, shopID, token string) (bool, error) {
	result, err := consumePinTokenScript.Run(ctx, r.client, []string{pinTokenKeyPrefix + token}, shopID).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err()
}

func (r *RedisAdapter) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisAdapter) ClaimToken(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return r.MarkOnce(ctx, revokedKeyPrefix+jti, max(ttl, time.Second))
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
