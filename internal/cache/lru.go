package cache

import (
	"context"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultTTL = 5 * time.Minute

type entry struct {
	value    []byte
	expireAt time.Time
}

// LRU is an in-process cache. The expirable LRU enforces one global TTL, so
// each entry also carries its own deadline for shorter per-call TTLs. The
// global TTL is the configured one, never below an hour.
type LRU struct {
	lru    *expirable.LRU[string, entry]
	maxTTL time.Duration
	now    func() time.Time
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 10000
	}
	maxTTL := max(ttl, time.Hour)
	return &LRU{
		lru:    expirable.NewLRU[string, entry](size, nil, maxTTL),
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

func (l *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := l.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !l.now().Before(e.expireAt) {
		l.lru.Remove(key)
		return nil, false, nil
	}
	return cloneBytes(e.value), true, nil
}

func (l *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	l.lru.Add(key, entry{value: cloneBytes(value), expireAt: l.now().Add(ttl)})
	return nil
}

func (l *LRU) DeletePattern(_ context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range l.lru.Keys() {
		if ok, _ := path.Match(pattern, key); ok && l.lru.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
