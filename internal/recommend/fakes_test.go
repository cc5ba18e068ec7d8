package recommend

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

type memStore struct {
	mu      sync.Mutex
	vectors map[model.EmbeddingSpace]map[int64][]float32
	err     error
}

func newMemStore() *memStore {
	return &memStore{vectors: make(map[model.EmbeddingSpace]map[int64][]float32)}
}

func (m *memStore) put(space model.EmbeddingSpace, id int64, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectors[space] == nil {
		m.vectors[space] = make(map[int64][]float32)
	}
	m.vectors[space][id] = v
}

func (m *memStore) Upsert(_ context.Context, space model.EmbeddingSpace, items []model.Embedding, _ int64) error {
	if m.err != nil {
		return m.err
	}
	for _, it := range items {
		m.put(space, it.ID, it.Vector)
	}
	return nil
}

func (m *memStore) Get(_ context.Context, space model.EmbeddingSpace, id int64) ([]float32, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vectors[space][id]
	return v, ok, nil
}

func (m *memStore) GetMany(_ context.Context, space model.EmbeddingSpace, ids []int64) (map[int64][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64][]float32)
	for _, id := range ids {
		if v, ok := m.vectors[space][id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memStore) Nearest(_ context.Context, space model.EmbeddingSpace, query []float32, exclude []int64, k int) ([]model.Neighbor, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	skip := idSet(exclude)
	out := make([]model.Neighbor, 0)
	for id, v := range m.vectors[space] {
		if _, ok := skip[id]; ok {
			continue
		}
		var sum float64
		for i := range v {
			d := float64(v[i]) - float64(query[i])
			sum += d * d
		}
		out = append(out, model.Neighbor{ID: id, Distance: math.Sqrt(sum)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, space model.EmbeddingSpace) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.vectors[space])), nil
}

func (m *memStore) Available(context.Context) error { return m.err }

// memPurchases holds raw purchase rows: one row per (customer, product, qty).
type memPurchases struct {
	rows []model.PurchaseAggregate
	err  error
}

func (m *memPurchases) PopularProducts(_ context.Context, exclude []int64, limit int) ([]model.PopularProduct, error) {
	if m.err != nil {
		return nil, m.err
	}
	skip := idSet(exclude)
	counts := make(map[int64]int64)
	for _, r := range m.rows {
		if _, ok := skip[r.ProductID]; ok {
			continue
		}
		counts[r.ProductID]++
	}
	out := make([]model.PopularProduct, 0, len(counts))
	for id, c := range counts {
		out = append(out, model.PopularProduct{ProductID: id, PurchaseCount: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PurchaseCount != out[j].PurchaseCount {
			return out[i].PurchaseCount > out[j].PurchaseCount
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPurchases) PurchasedProductIDs(_ context.Context, customerID int64) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	set := make(map[int64]struct{})
	for _, r := range m.rows {
		if r.CustomerID == customerID {
			set[r.ProductID] = struct{}{}
		}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memPurchases) NeighborPurchases(_ context.Context, customerIDs []int64) ([]model.PurchaseAggregate, error) {
	if m.err != nil {
		return nil, m.err
	}
	want := idSet(customerIDs)
	type key struct{ c, p int64 }
	sums := make(map[key]float64)
	for _, r := range m.rows {
		if _, ok := want[r.CustomerID]; ok {
			sums[key{r.CustomerID, r.ProductID}] += r.Quantity
		}
	}
	out := make([]model.PurchaseAggregate, 0, len(sums))
	for k, q := range sums {
		out = append(out, model.PurchaseAggregate{CustomerID: k.c, ProductID: k.p, Quantity: q})
	}
	return out, nil
}

type memCatalog map[int64]model.Product

func (m memCatalog) ProductsByIDs(_ context.Context, ids []int64) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product)
	for _, id := range ids {
		if p, ok := m[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func catalogOf(ids ...int64) memCatalog {
	c := memCatalog{}
	for _, id := range ids {
		c[id] = model.Product{ID: id, Name: "p", Category: "c", Price: float64(id)}
	}
	return c
}

type stubRecommender struct {
	recs []model.Recommendation
	err  error
	seen int
}

func (s *stubRecommender) Recommend(_ context.Context, _ int64, topN int) ([]model.Recommendation, error) {
	s.seen = topN
	return s.recs, s.err
}

var errBoom = errors.New("boom")

func productIDs(recs []model.Recommendation) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ProductID)
	}
	return out
}
