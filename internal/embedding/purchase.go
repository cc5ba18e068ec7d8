package embedding

import (
	"sort"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

type matrixCell struct {
	col int
	qty float64
}

// PurchaseMatrix is the customer x product table of summed quantities.
// Rows follow ascending customer id and columns ascending product id. It is
// never modified after BuildPurchaseMatrix returns.
type PurchaseMatrix struct {
	customerIDs []int64
	productIDs  []int64
	rows        [][]matrixCell
	nonZero     int
}

func BuildPurchaseMatrix(aggs []model.PurchaseAggregate) *PurchaseMatrix {
	customerSet := make(map[int64]struct{})
	productSet := make(map[int64]struct{})
	for _, a := range aggs {
		if a.Quantity <= 0 {
			continue
		}
		customerSet[a.CustomerID] = struct{}{}
		productSet[a.ProductID] = struct{}{}
	}
	m := &PurchaseMatrix{
		customerIDs: sortedIDs(customerSet),
		productIDs:  sortedIDs(productSet),
	}
	rowIndex := indexOf(m.customerIDs)
	colIndex := indexOf(m.productIDs)
	sums := make([]map[int]float64, len(m.customerIDs))
	for _, a := range aggs {
		if a.Quantity <= 0 {
			continue
		}
		r := rowIndex[a.CustomerID]
		if sums[r] == nil {
			sums[r] = make(map[int]float64)
		}
		sums[r][colIndex[a.ProductID]] += a.Quantity
	}
	m.rows = make([][]matrixCell, len(sums))
	for r, cells := range sums {
		row := make([]matrixCell, 0, len(cells))
		for col, qty := range cells {
			row = append(row, matrixCell{col: col, qty: qty})
		}
		sort.Slice(row, func(i, j int) bool { return row[i].col < row[j].col })
		m.rows[r] = row
		m.nonZero += len(row)
	}
	return m
}

func (m *PurchaseMatrix) CustomerIDs() []int64 {
	return append([]int64(nil), m.customerIDs...)
}

func (m *PurchaseMatrix) ProductIDs() []int64 {
	return append([]int64(nil), m.productIDs...)
}

func (m *PurchaseMatrix) Customers() int { return len(m.customerIDs) }

func (m *PurchaseMatrix) Products() int { return len(m.productIDs) }

// Sparsity is the share of empty cells, 0 for an empty matrix.
func (m *PurchaseMatrix) Sparsity() float64 {
	total := len(m.customerIDs) * len(m.productIDs)
	if total == 0 {
		return 0
	}
	return 1 - float64(m.nonZero)/float64(total)
}

// Row returns the dense quantity row of the i-th customer.
func (m *PurchaseMatrix) Row(i int) []float64 {
	out := make([]float64, len(m.productIDs))
	for _, c := range m.rows[i] {
		out[c.col] = c.qty
	}
	return out
}

// Quantities returns product id -> summed quantity for the i-th customer.
func (m *PurchaseMatrix) Quantities(i int) map[int64]float64 {
	out := make(map[int64]float64, len(m.rows[i]))
	for _, c := range m.rows[i] {
		out[m.productIDs[c.col]] = c.qty
	}
	return out
}

// EmbedPurchasePatterns turns every matrix row into a unit vector of width
// dim. Columns past dim are dropped by Fit, so customers whose purchases all
// fall outside the first dim products get no vector and are counted in
// skipped.
func EmbedPurchasePatterns(m *PurchaseMatrix, dim int) (out []model.Embedding, skipped int) {
	out = make([]model.Embedding, 0, len(m.customerIDs))
	for i, id := range m.customerIDs {
		vec, ok := Fit(m.Row(i), dim)
		if !ok {
			skipped++
			continue
		}
		out = append(out, model.Embedding{ID: id, Vector: vec})
	}
	return out, skipped
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func indexOf(ids []int64) map[int64]int {
	idx := make(map[int64]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}
