package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/recommend"
)

// WrapLruCacheToCatalog keeps recently resolved product metadata in memory.
// A non-positive size or ttl returns c unchanged.
func WrapLruCacheToCatalog(c recommend.Catalog, size int, ttl time.Duration) recommend.Catalog {
	if c == nil || size <= 0 || ttl <= 0 {
		return c
	}
	return &lruCatalog{
		next:  c,
		cache: expirable.NewLRU[int64, model.Product](size, nil, ttl),
	}
}

type lruCatalog struct {
	next  recommend.Catalog
	cache *expirable.LRU[int64, model.Product]
}

func (l *lruCatalog) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product, len(ids))
	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if p, ok := l.cache.Get(id); ok {
			out[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		logutil.GetLogger(ctx).Debug("product metadata cache hit", zap.Int("count", len(ids)))
		return out, nil
	}
	loaded, err := l.next.ProductsByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range loaded {
		l.cache.Add(id, p)
		out[id] = p
	}
	return out, nil
}

// Purge drops every cached product, e.g. after a catalog reload.
func (l *lruCatalog) Purge() {
	l.cache.Purge()
}

// Purger is implemented by catalogs that can drop cached state.
type Purger interface {
	Purge()
}
