// Package cache is the best-effort result cache. Callers treat any read
// error as a miss and never surface write errors.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/config"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePattern removes keys matching a glob pattern ('*' wildcard) and
	// reports how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case config.CacheTypeNone:
		return Noop{}, nil
	case config.CacheTypeMemory, "":
		return NewLRU(cfg.Size, time.Duration(cfg.TTLSeconds)*time.Second), nil
	case config.CacheTypeRedis:
		return NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	}
	return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
}

// RecommendationKey is rec:{strategy}:{customer}:{limit}.
func RecommendationKey(strategy string, customerID int64, limit int) string {
	return strings.Join([]string{"rec", strategy, strconv.FormatInt(customerID, 10), strconv.Itoa(limit)}, ":")
}

func CustomerPattern(customerID int64) string {
	return "rec:*:" + strconv.FormatInt(customerID, 10) + ":*"
}

const AllRecommendationsPattern = "rec:*"

type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) DeletePattern(context.Context, string) (int, error) { return 0, nil }
