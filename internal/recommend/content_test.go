package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

func contentFixture() (*memStore, *memPurchases, memCatalog) {
	store := newMemStore()
	store.put(model.SpaceProduct, 10, []float32{1, 0, 0})
	store.put(model.SpaceProduct, 20, []float32{0.8, 0.6, 0})
	store.put(model.SpaceProduct, 30, []float32{0, 1, 0})
	store.put(model.SpaceProduct, 40, []float32{0, 0, 1})
	store.put(model.SpaceProduct, 50, []float32{0.6, 0.8, 0})
	purchases := &memPurchases{rows: []model.PurchaseAggregate{
		{CustomerID: 1, ProductID: 10, Quantity: 1},
		{CustomerID: 1, ProductID: 30, Quantity: 1},
		{CustomerID: 2, ProductID: 60, Quantity: 1},
		{CustomerID: 3, ProductID: 10, Quantity: 1},
	}}
	return store, purchases, catalogOf(10, 20, 30, 40, 50, 60)
}

func TestContentRecommend(t *testing.T) {
	store, purchases, catalog := contentFixture()
	content := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), DefaultMinSimilarity, DefaultCandidatePool)

	recs, err := content.Recommend(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, []int64{20, 50, 40}, productIDs(recs))
	require.InDelta(t, 0.6837722+0.5527864, recs[0].Score, 1e-5)
	require.Equal(t, recs[0].Score, recs[1].Score)
	require.InDelta(t, 2*(1-0.7071068), recs[2].Score, 1e-5)
	for _, r := range recs {
		require.Equal(t, model.ReasonContentBased, r.Reason)
		require.NotEqual(t, int64(10), r.ProductID)
		require.NotEqual(t, int64(30), r.ProductID)
	}
}

func TestContentRecommendThreshold(t *testing.T) {
	store, purchases, catalog := contentFixture()
	content := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), 0.5, DefaultCandidatePool)

	recs, err := content.Recommend(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, []int64{20, 50}, productIDs(recs))
}

func TestContentRecommendFallbacks(t *testing.T) {
	store, purchases, catalog := contentFixture()
	content := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), DefaultMinSimilarity, DefaultCandidatePool)
	ctx := context.Background()

	// no purchases at all
	recs, err := content.Recommend(ctx, 77, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 30}, productIDs(recs))
	require.Equal(t, model.ReasonPopular, recs[0].Reason)
	require.Equal(t, 2.0, recs[0].Score)

	// purchases without vectors
	recs, err = content.Recommend(ctx, 2, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 30}, productIDs(recs))
	require.NotContains(t, productIDs(recs), int64(60))
}

func TestContentRecommendNoCandidatesAboveThreshold(t *testing.T) {
	store, purchases, catalog := contentFixture()
	content := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), 0.99, DefaultCandidatePool)
	recs, err := content.Recommend(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{30, 60}, productIDs(recs))
	for _, r := range recs {
		require.Equal(t, model.ReasonPopular, r.Reason)
	}
}

func TestContentRecommendStoreFailure(t *testing.T) {
	store, purchases, catalog := contentFixture()
	store.err = errBoom
	content := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), DefaultMinSimilarity, DefaultCandidatePool)
	_, err := content.Recommend(context.Background(), 1, 2)
	require.ErrorIs(t, err, errBoom)
}

func TestContentSkipsProductsWithoutMetadata(t *testing.T) {
	store, purchases, catalog := contentFixture()
	delete(catalog, 20)
	content := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), DefaultMinSimilarity, DefaultCandidatePool)
	recs, err := content.Recommend(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, []int64{50, 40}, productIDs(recs))
}

func TestContentFallsBackWhenMetadataMissing(t *testing.T) {
	store, purchases, catalog := contentFixture()
	delete(catalog, 20)
	delete(catalog, 40)
	delete(catalog, 50)
	content := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), DefaultMinSimilarity, DefaultCandidatePool)
	recs, err := content.Recommend(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{60}, productIDs(recs))
	require.Equal(t, model.ReasonPopular, recs[0].Reason)
}

func TestSimilarProducts(t *testing.T) {
	store, purchases, catalog := contentFixture()
	ctx := context.Background()
	content := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), DefaultMinSimilarity, DefaultCandidatePool)

	recs, err := content.SimilarProducts(ctx, 10, 5)
	require.NoError(t, err)
	require.Equal(t, []int64{20, 50, 30, 40}, productIDs(recs))
	require.Equal(t, model.ReasonSimilarProduct, recs[0].Reason)
	for i := 1; i < len(recs); i++ {
		require.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score)
	}

	strict := NewContent(store, purchases, catalog, NewPopularity(purchases, catalog), 0.5, DefaultCandidatePool)
	recs, err = strict.SimilarProducts(ctx, 10, 5)
	require.NoError(t, err)
	require.Equal(t, []int64{20, 50}, productIDs(recs))

	recs, err = content.SimilarProducts(ctx, 999, 5)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestDistanceToSimilarity(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.5, 0.75},
		{1, 0.5},
		{2, 0},
		{3, 0},
	}
	for _, tt := range tests {
		require.InDelta(t, tt.want, DistanceToSimilarity(tt.distance), 1e-12)
	}
	prev := DistanceToSimilarity(0)
	for d := 0.01; d <= 2.5; d += 0.01 {
		cur := DistanceToSimilarity(d)
		require.LessOrEqual(t, cur, prev)
		prev = cur
	}
}
