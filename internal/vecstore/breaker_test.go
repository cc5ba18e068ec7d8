package vecstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
)

type flakyStore struct {
	err   error
	calls int
}

func (f *flakyStore) Upsert(context.Context, model.EmbeddingSpace, []model.Embedding, int64) error {
	f.calls++
	return f.err
}

func (f *flakyStore) Get(context.Context, model.EmbeddingSpace, int64) ([]float32, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	return []float32{1}, true, nil
}

func (f *flakyStore) GetMany(context.Context, model.EmbeddingSpace, []int64) (map[int64][]float32, error) {
	f.calls++
	return nil, f.err
}

func (f *flakyStore) Nearest(context.Context, model.EmbeddingSpace, []float32, []int64, int) ([]model.Neighbor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []model.Neighbor{{ID: 2, Distance: 0.5}}, nil
}

func (f *flakyStore) Count(context.Context, model.EmbeddingSpace) (int64, error) {
	f.calls++
	return 3, f.err
}

func (f *flakyStore) Available(context.Context) error {
	f.calls++
	return f.err
}

func TestBreakerPassesThrough(t *testing.T) {
	store := &flakyStore{}
	b := NewBreaker(store, BreakerConfig{Failures: 2, Timeout: time.Minute})
	ctx := context.Background()

	vec, ok, err := b.Get(ctx, model.SpaceProduct, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{1}, vec)

	got, err := b.Nearest(ctx, model.SpaceProduct, []float32{1}, nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)

	many, err := b.GetMany(ctx, model.SpaceProduct, []int64{1})
	require.NoError(t, err)
	require.Nil(t, many)

	n, err := b.Count(ctx, model.SpaceProduct)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("connection refused")
	store := &flakyStore{err: boom}
	b := NewBreaker(store, BreakerConfig{Failures: 2, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Nearest(ctx, model.SpaceProduct, []float32{1}, nil, 3)
		require.ErrorIs(t, err, boom)
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	calls := store.calls
	_, _, err := b.Get(ctx, model.SpaceProduct, 1)
	require.ErrorIs(t, err, appErr.ErrUnavailable)
	require.True(t, appErr.IsUnavailable(err))
	require.Equal(t, calls, store.calls)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	store := &flakyStore{err: context.Canceled}
	b := NewBreaker(store, BreakerConfig{Failures: 1, Timeout: time.Minute})
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, b.Available(context.Background()), context.Canceled)
	}
	require.Equal(t, gobreaker.StateClosed, b.State())
}
