package model

// EmbeddingSpace names one family of comparable vectors. Vectors are only
// ever compared with vectors of the same space.
type EmbeddingSpace string

const (
	SpaceProduct          EmbeddingSpace = "product"
	SpaceCustomerPurchase EmbeddingSpace = "customer_purchase"
	SpaceCustomerContent  EmbeddingSpace = "customer_content"
)

func (s EmbeddingSpace) Valid() bool {
	switch s {
	case SpaceProduct, SpaceCustomerPurchase, SpaceCustomerContent:
		return true
	}
	return false
}

type Embedding struct {
	ID     int64     `json:"id"`
	Vector []float32 `json:"vector"`
}

// Neighbor is one nearest-neighbour hit; Distance is the L2 distance.
type Neighbor struct {
	ID       int64   `json:"id"`
	Distance float64 `json:"distance"`
}
