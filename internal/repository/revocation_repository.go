package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "token:revoked:"

// RevocationRepository is a deny-list of token IDs revoked before expiry.
// Entries expire from the store together with the token they block.
type RevocationRepository interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type redisRevocationRepository struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRevocationRepository returns a Redis-backed deny-list.
func NewRevocationRepository(client redis.Cmdable) RevocationRepository {
	return &redisRevocationRepository{client: client, now: time.Now}
}

func (r *redisRevocationRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("token id is required")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, expiresAt.Unix(), ttl).Err()
}

func (r *redisRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
