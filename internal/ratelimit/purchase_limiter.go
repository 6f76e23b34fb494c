package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/placehub/placehub/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPurchaseAccount = "purchase:account:%s"
	keySweepLock       = "sweep:lock:%s"
)

const sweepLockTTL = 5 * time.Minute

// PurchaseLimiter throttles money-moving requests per account and hands out
// the sweep locks that keep scheduler instances from racing each other. A nil
// limiter (rate limiting disabled) allows everything.
type PurchaseLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	purchaseRate  float64
	purchaseBurst int
}

func NewPurchaseLimiter(cfg config.Config) (*PurchaseLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PurchaseRate <= 0 || limitCfg.PurchaseBurst <= 0 {
		return nil, errors.New("purchase rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PurchaseLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		locker:        NewLocker(client),
		purchaseRate:  limitCfg.PurchaseRate,
		purchaseBurst: limitCfg.PurchaseBurst,
	}, nil
}

func (l *PurchaseLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PurchaseLimiter) AllowPurchase(ctx context.Context, accountID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPurchaseAccount, strings.TrimSpace(accountID)), l.purchaseRate, l.purchaseBurst)
}

// TryLockSweep guards one named scheduler sweep across instances.
func (l *PurchaseLimiter) TryLockSweep(ctx context.Context, job string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keySweepLock, job), sweepLockTTL)
}

func (l *PurchaseLimiter) ReleaseSweep(ctx context.Context, job, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keySweepLock, job), token)
}
