package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// MarkOnce sets key for ttl, returns false if it was already set
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseIdempotency frees a key after the guarded operation failed
	ReleaseIdempotency(ctx context.Context, key string) error

	// StorePinToken remembers a one-time PIN confirmation for a shop
	StorePinToken(ctx context.Context, shopID, token string, ttl time.Duration) error

	// ConsumePinToken deletes the token if it belongs to shopID, returns false otherwise
	ConsumePinToken(ctx context.Context, shopID, token string) (bool, error)

	// RevokeToken blacklists a JWT id until it would have expired anyway
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error

	IsTokenRevoked(ctx context.Context, jti string) (bool, error)

	// ClaimToken revokes a JWT id, returns false if it was already revoked
	ClaimToken(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}
