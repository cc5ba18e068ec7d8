package embedding

import (
	"context"
	"sort"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

// ProductVectorSource resolves product ids to their current content vectors.
// Ids without a vector are simply absent from the result.
type ProductVectorSource interface {
	ProductVectors(ctx context.Context, ids []int64) (map[int64][]float32, error)
}

// StaticVectors serves vectors from memory, e.g. a freshly fitted batch.
type StaticVectors map[int64][]float32

func (s StaticVectors) ProductVectors(_ context.Context, ids []int64) (map[int64][]float32, error) {
	out := make(map[int64][]float32, len(ids))
	for _, id := range ids {
		if v, ok := s[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// ContentAggregator builds a customer's content profile as the weighted mean
// of the vectors of the products they bought.
type ContentAggregator struct {
	dim              int
	weightByQuantity bool
}

func NewContentAggregator(dim int, weightByQuantity bool) *ContentAggregator {
	return &ContentAggregator{dim: dim, weightByQuantity: weightByQuantity}
}

// Profile returns ok=false when none of the purchased products has a vector.
func (a *ContentAggregator) Profile(ctx context.Context, quantities map[int64]float64, src ProductVectorSource) ([]float32, bool, error) {
	if len(quantities) == 0 {
		return nil, false, nil
	}
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	vectors, err := src.ProductVectors(ctx, ids)
	if err != nil {
		return nil, false, err
	}
	var totalWeight float64
	for _, id := range ids {
		if _, ok := vectors[id]; ok {
			totalWeight += a.weight(quantities[id])
		}
	}
	if totalWeight <= 0 {
		return nil, false, nil
	}
	mean := make([]float64, a.dim)
	for _, id := range ids {
		vec, ok := vectors[id]
		if !ok {
			continue
		}
		w := a.weight(quantities[id]) / totalWeight
		for i := 0; i < len(vec) && i < a.dim; i++ {
			mean[i] += w * float64(vec[i])
		}
	}
	vec, ok := Fit(mean, a.dim)
	return vec, ok, nil
}

// ProfileAll computes the content profile of every customer in m.
func (a *ContentAggregator) ProfileAll(ctx context.Context, m *PurchaseMatrix, src ProductVectorSource) ([]model.Embedding, int, error) {
	out := make([]model.Embedding, 0, m.Customers())
	skipped := 0
	for i, id := range m.customerIDs {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		vec, ok, err := a.Profile(ctx, m.Quantities(i), src)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			skipped++
			continue
		}
		out = append(out, model.Embedding{ID: id, Vector: vec})
	}
	return out, skipped, nil
}

func (a *ContentAggregator) weight(qty float64) float64 {
	if !a.weightByQuantity {
		return 1
	}
	if qty <= 0 {
		return 0
	}
	return qty
}
