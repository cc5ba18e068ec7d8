// Package vecstore guards the vector store with a circuit breaker so that a
// failing pgvector backend turns into fast "degraded" answers.
package vecstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/metrics"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/recommend"
)

type BreakerConfig struct {
	Name     string
	Failures uint32
	Timeout  time.Duration
}

// Breaker decorates a recommend.VectorStore. While the circuit is open every
// call fails with appErr.ErrUnavailable without reaching the store.
type Breaker struct {
	next recommend.VectorStore
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(next recommend.VectorStore, cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "vector_store"
	}
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.VectorStoreBreakerState.Set(float64(to))
			logutil.GetLogger(context.Background()).Warn("vector store breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
		// caller cancellation and cold-start lookups say nothing about store health
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, appErr.ErrInvalid)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) do(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", appErr.ErrUnavailable, err)
	}
	return res, err
}

func (b *Breaker) Upsert(ctx context.Context, space model.EmbeddingSpace, items []model.Embedding, versionID int64) error {
	_, err := b.do(func() (any, error) {
		return nil, b.next.Upsert(ctx, space, items, versionID)
	})
	return err
}

type getResult struct {
	vec []float32
	ok  bool
}

func (b *Breaker) Get(ctx context.Context, space model.EmbeddingSpace, id int64) ([]float32, bool, error) {
	res, err := b.do(func() (any, error) {
		vec, ok, err := b.next.Get(ctx, space, id)
		return getResult{vec: vec, ok: ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	r := res.(getResult)
	return r.vec, r.ok, nil
}

func (b *Breaker) GetMany(ctx context.Context, space model.EmbeddingSpace, ids []int64) (map[int64][]float32, error) {
	res, err := b.do(func() (any, error) {
		return b.next.GetMany(ctx, space, ids)
	})
	if err != nil {
		return nil, err
	}
	return res.(map[int64][]float32), nil
}

func (b *Breaker) Nearest(ctx context.Context, space model.EmbeddingSpace, query []float32, exclude []int64, k int) ([]model.Neighbor, error) {
	res, err := b.do(func() (any, error) {
		return b.next.Nearest(ctx, space, query, exclude, k)
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.Neighbor), nil
}

func (b *Breaker) Count(ctx context.Context, space model.EmbeddingSpace) (int64, error) {
	res, err := b.do(func() (any, error) {
		return b.next.Count(ctx, space)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (b *Breaker) Available(ctx context.Context) error {
	_, err := b.do(func() (any, error) {
		return nil, b.next.Available(ctx)
	})
	return err
}
