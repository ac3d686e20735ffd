package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes a key so a corrected retry of a failed
	// request is not rejected as a duplicate
	ReleaseIdempotency(ctx context.Context, key string) error
}
