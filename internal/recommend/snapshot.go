package recommend

import (
	"time"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/embedding"
)

// Snapshot is the result of one retrain. It is built once and shared
// read-only; a newer retrain replaces the whole value.
type Snapshot struct {
	VersionID  int64
	Dimension  int
	TrainedAt  time.Time
	Matrix     *embedding.PurchaseMatrix
	Vocabulary []string

	ProductVectors         int
	PurchaseVectors        int
	ContentProfileVectors  int
	SkippedProducts        int
	SkippedPurchaseVectors int
	SkippedProfileVectors  int
}

func (s *Snapshot) Customers() int {
	if s == nil || s.Matrix == nil {
		return 0
	}
	return s.Matrix.Customers()
}

func (s *Snapshot) Products() int {
	if s == nil || s.Matrix == nil {
		return 0
	}
	return s.Matrix.Products()
}

func (s *Snapshot) Sparsity() float64 {
	if s == nil || s.Matrix == nil {
		return 0
	}
	return s.Matrix.Sparsity()
}
