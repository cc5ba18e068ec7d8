package service

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
)

type memVectors struct {
	mu      sync.Mutex
	vectors map[model.EmbeddingSpace]map[int64][]float32
	upserts int
	err     error
}

func newMemVectors() *memVectors {
	return &memVectors{vectors: make(map[model.EmbeddingSpace]map[int64][]float32)}
}

func (m *memVectors) Upsert(_ context.Context, space model.EmbeddingSpace, items []model.Embedding, _ int64) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectors[space] == nil {
		m.vectors[space] = make(map[int64][]float32)
	}
	for _, it := range items {
		m.vectors[space][it.ID] = it.Vector
	}
	m.upserts++
	return nil
}

func (m *memVectors) Get(_ context.Context, space model.EmbeddingSpace, id int64) ([]float32, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vectors[space][id]
	return v, ok, nil
}

func (m *memVectors) GetMany(_ context.Context, space model.EmbeddingSpace, ids []int64) (map[int64][]float32, error) {
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

func (m *memVectors) Nearest(_ context.Context, space model.EmbeddingSpace, query []float32, exclude []int64, k int) ([]model.Neighbor, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
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

func (m *memVectors) Count(_ context.Context, space model.EmbeddingSpace) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.vectors[space])), nil
}

func (m *memVectors) Available(context.Context) error { return m.err }

// memData serves purchases, products, stats and model versions.
type memData struct {
	mu       sync.Mutex
	rows     []model.PurchaseAggregate
	products []model.Product
	versions []model.ModelVersion
}

func (m *memData) addPurchase(customerID, productID int64, qty float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, model.PurchaseAggregate{CustomerID: customerID, ProductID: productID, Quantity: qty})
}

func (m *memData) snapshotRows() []model.PurchaseAggregate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PurchaseAggregate(nil), m.rows...)
}

func (m *memData) PopularProducts(_ context.Context, exclude []int64, limit int) ([]model.PopularProduct, error) {
	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	counts := make(map[int64]int64)
	for _, r := range m.snapshotRows() {
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

func (m *memData) PurchasedProductIDs(ctx context.Context, customerID int64) ([]int64, error) {
	q, _ := m.PurchaseQuantities(ctx, customerID)
	out := make([]int64, 0, len(q))
	for id := range q {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memData) NeighborPurchases(_ context.Context, customerIDs []int64) ([]model.PurchaseAggregate, error) {
	want := make(map[int64]struct{}, len(customerIDs))
	for _, id := range customerIDs {
		want[id] = struct{}{}
	}
	out := make([]model.PurchaseAggregate, 0)
	for _, r := range m.sums() {
		if _, ok := want[r.CustomerID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memData) AggregateAll(context.Context) ([]model.PurchaseAggregate, error) {
	return m.sums(), nil
}

func (m *memData) sums() []model.PurchaseAggregate {
	type key struct{ c, p int64 }
	sums := make(map[key]float64)
	for _, r := range m.snapshotRows() {
		sums[key{r.CustomerID, r.ProductID}] += r.Quantity
	}
	out := make([]model.PurchaseAggregate, 0, len(sums))
	for k, q := range sums {
		out = append(out, model.PurchaseAggregate{CustomerID: k.c, ProductID: k.p, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CustomerID != out[j].CustomerID {
			return out[i].CustomerID < out[j].CustomerID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

func (m *memData) PurchaseQuantities(_ context.Context, customerID int64) (map[int64]float64, error) {
	out := make(map[int64]float64)
	for _, r := range m.snapshotRows() {
		if r.CustomerID == customerID {
			out[r.ProductID] += r.Quantity
		}
	}
	return out, nil
}

func (m *memData) CustomerIDsWithPurchases(context.Context) ([]int64, error) {
	set := make(map[int64]struct{})
	for _, r := range m.snapshotRows() {
		set[r.CustomerID] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memData) ListAll(context.Context) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Product(nil), m.products...), nil
}

func (m *memData) ProductsByIDs(_ context.Context, ids []int64) (map[int64]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]model.Product)
	for _, id := range ids {
		for _, p := range m.products {
			if p.ID == id {
				out[id] = p
			}
		}
	}
	return out, nil
}

func (m *memData) CatalogStats(context.Context) (*model.CatalogStats, error) {
	ids, _ := m.CustomerIDsWithPurchases(context.Background())
	m.mu.Lock()
	defer m.mu.Unlock()
	return &model.CatalogStats{
		TotalCustomers: int64(len(ids)),
		TotalProducts:  int64(len(m.products)),
		TotalPurchases: int64(len(m.rows)),
	}, nil
}

func (m *memData) Create(_ context.Context, name string, dimension int, params, metrics map[string]interface{}) (*model.ModelVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := model.ModelVersion{
		ID:        int64(len(m.versions) + 1),
		Name:      name,
		Dimension: dimension,
		Params:    params,
		Metrics:   metrics,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, len(m.versions), 0, time.UTC),
	}
	m.versions = append(m.versions, v)
	return &v, nil
}

func (m *memData) Latest(context.Context) (*model.ModelVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.versions) == 0 {
		return nil, appErr.ErrNotFound
	}
	v := m.versions[len(m.versions)-1]
	return &v, nil
}

func (m *memData) List(_ context.Context, limit int) ([]model.ModelVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ModelVersion, 0, len(m.versions))
	for i := len(m.versions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.versions[i])
	}
	return out, nil
}

// sampleData is a small shop: customers 1 and 2 share electronics habits,
// customer 3 buys books.
func sampleData() *memData {
	d := &memData{
		products: []model.Product{
			{ID: 1, Name: "Wireless Mouse", Category: "Electronics", Description: "Ergonomic **wireless** mouse", Price: 25},
			{ID: 2, Name: "Mechanical Keyboard", Category: "Electronics", Description: "Keyboard with wireless receiver", Price: 80},
			{ID: 3, Name: "USB Hub", Category: "Electronics", Description: "Four port hub", Price: 15},
			{ID: 4, Name: "Mystery Novel", Category: "Books", Description: "A detective story", Price: 12},
			{ID: 5, Name: "Cookbook", Category: "Books", Description: "Recipes for every day", Price: 30},
		},
	}
	d.addPurchase(1, 1, 1)
	d.addPurchase(1, 2, 1)
	d.addPurchase(2, 1, 2)
	d.addPurchase(2, 3, 1)
	d.addPurchase(3, 4, 1)
	d.addPurchase(3, 5, 1)
	return d
}
