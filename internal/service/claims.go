package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Claimer hands out advisory, expiring claims on units of work.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// releaser is implemented by claimers that can drop a claim early.
type releaser interface {
	Release(ctx context.Context, key string) error
}

// releaseClaim gives key back so the next run may retry work that was never attempted.
func releaseClaim(claims Claimer, key string) error {
	r, ok := claims.(releaser)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.Release(ctx, key)
}

// NopClaimer grants every claim. Used when no Redis is configured.
type NopClaimer struct{}

func (NopClaimer) Claim(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

// ScanReport summarizes one scan tick.
type ScanReport struct {
	Scanned int
	Sent    int
	Closed  int
	Failed  int
	Skipped int
	Errors  int
}

func (r ScanReport) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("scanned", r.Scanned),
		zap.Int("sent", r.Sent),
		zap.Int("closed", r.Closed),
		zap.Int("failed", r.Failed),
		zap.Int("skipped", r.Skipped),
		zap.Int("errors", r.Errors),
	}
}
