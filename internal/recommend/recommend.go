// Package recommend ranks products for a customer from nearest-neighbour
// queries against stored embeddings.
package recommend

import (
	"context"
	"sort"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

// VectorStore is the nearest-neighbour capable embedding store.
type VectorStore interface {
	Upsert(ctx context.Context, space model.EmbeddingSpace, items []model.Embedding, versionID int64) error
	// Get returns ok=false when id has no stored vector.
	Get(ctx context.Context, space model.EmbeddingSpace, id int64) ([]float32, bool, error)
	GetMany(ctx context.Context, space model.EmbeddingSpace, ids []int64) (map[int64][]float32, error)
	// Nearest returns up to k neighbours of query ordered by ascending
	// distance, never including an id from exclude.
	Nearest(ctx context.Context, space model.EmbeddingSpace, query []float32, exclude []int64, k int) ([]model.Neighbor, error)
	Count(ctx context.Context, space model.EmbeddingSpace) (int64, error)
	Available(ctx context.Context) error
}

// PurchaseSource reads aggregated purchase history.
type PurchaseSource interface {
	// PopularProducts ranks products by number of purchase rows, descending,
	// ties by ascending product id, skipping ids in exclude.
	PopularProducts(ctx context.Context, exclude []int64, limit int) ([]model.PopularProduct, error)
	// PurchasedProductIDs returns the distinct products a customer bought,
	// ascending.
	PurchasedProductIDs(ctx context.Context, customerID int64) ([]int64, error)
	// NeighborPurchases returns summed quantities per (customer, product) for
	// the given customers.
	NeighborPurchases(ctx context.Context, customerIDs []int64) ([]model.PurchaseAggregate, error)
}

// Catalog resolves product display metadata. Unknown ids are absent from the
// result.
type Catalog interface {
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
}

// Recommender is one ranking strategy.
type Recommender interface {
	Recommend(ctx context.Context, customerID int64, topN int) ([]model.Recommendation, error)
}

// DistanceToSimilarity maps an L2 distance between unit vectors, which lies
// in [0,2], onto [0,1].
func DistanceToSimilarity(distance float64) float64 {
	s := 1 - distance/2
	if s < 0 {
		return 0
	}
	return s
}

type scored struct {
	id    int64
	score float64
}

// rank orders scores descending with ascending id as tie-break and keeps at
// most topN entries.
func rank(scores map[int64]float64, topN int) []scored {
	out := make([]scored, 0, len(scores))
	for id, s := range scores {
		out = append(out, scored{id: id, score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	if topN >= 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// withMetadata turns ranked ids into recommendations. Ids missing from the
// catalog are dropped when strict is set, otherwise kept without metadata.
func withMetadata(ctx context.Context, catalog Catalog, items []scored, reason model.Reason, strict bool) ([]model.Recommendation, error) {
	if len(items) == 0 {
		return []model.Recommendation{}, nil
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.id)
	}
	products, err := catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.Recommendation, 0, len(items))
	for _, it := range items {
		rec := model.Recommendation{ProductID: it.id, Score: it.score, Reason: reason}
		p, ok := products[it.id]
		if !ok && strict {
			continue
		}
		if ok {
			rec.Name = p.Name
			rec.Category = p.Category
			rec.Price = p.Price
		}
		out = append(out, rec)
	}
	return out, nil
}
