package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const claimMarker = "claimed"

// ClaimService hands out short-lived exclusive claims using SET NX.
type ClaimService struct {
	client *Client
	prefix string
	logger *zap.Logger
}

func NewClaimService(client *Client, prefix string, logger *zap.Logger) *ClaimService {
	if prefix == "" {
		prefix = "nudge"
	}
	return &ClaimService{client: client, prefix: prefix, logger: logger}
}

func (s *ClaimService) buildKey(key string) string {
	return fmt.Sprintf("%s:claim:%s", s.prefix, key)
}

// Claim returns true if the caller now owns key for ttl, false if someone else does.
func (s *ClaimService) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := s.client.rdb.SetNX(ctx, s.buildKey(key), claimMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !set {
		s.logger.Debug("claim already held", zap.String("key", key))
	}
	return set, nil
}

// Release drops a claim early, e.g. when the claimed work was not attempted.
func (s *ClaimService) Release(ctx context.Context, key string) error {
	if err := s.client.rdb.Del(ctx, s.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
