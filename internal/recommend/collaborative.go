package recommend

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

const (
	DefaultKNeighbors = 20
	// neighborEpsilon keeps 1/(distance+eps) finite for identical customers.
	neighborEpsilon = 0.001
)

// Collaborative scores products by what the customer's nearest neighbours in
// purchase-pattern space bought.
type Collaborative struct {
	store      VectorStore
	purchases  PurchaseSource
	catalog    Catalog
	popular    *Popularity
	kNeighbors int
}

func NewCollaborative(store VectorStore, purchases PurchaseSource, catalog Catalog, popular *Popularity, kNeighbors int) *Collaborative {
	if kNeighbors <= 0 {
		kNeighbors = DefaultKNeighbors
	}
	return &Collaborative{
		store:      store,
		purchases:  purchases,
		catalog:    catalog,
		popular:    popular,
		kNeighbors: kNeighbors,
	}
}

func (c *Collaborative) Recommend(ctx context.Context, customerID int64, topN int) ([]model.Recommendation, error) {
	logger := logutil.GetLogger(ctx).With(zap.Int64("customer_id", customerID), zap.String("strategy", string(model.StrategyCollaborative)))
	if topN <= 0 {
		return []model.Recommendation{}, nil
	}
	purchased, err := c.purchases.PurchasedProductIDs(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	vec, ok, err := c.store.Get(ctx, model.SpaceCustomerPurchase, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer embedding: %w", err)
	}
	if !ok {
		logger.Debug("no customer embedding, use popular products")
		return c.popular.Top(ctx, purchased, topN)
	}
	neighbors, err := c.store.Nearest(ctx, model.SpaceCustomerPurchase, vec, []int64{customerID}, c.kNeighbors)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	scores, err := c.neighborScores(ctx, neighbors, idSet(purchased))
	if err != nil {
		return nil, err
	}
	ranked := rank(scores, topN)
	recs, err := withMetadata(ctx, c.catalog, ranked, model.ReasonCustomersLikeYou, false)
	if err != nil {
		return nil, fmt.Errorf("load product metadata: %w", err)
	}
	if len(recs) >= topN {
		return recs, nil
	}
	exclude := append([]int64(nil), purchased...)
	for _, r := range recs {
		exclude = append(exclude, r.ProductID)
	}
	backfill, err := c.popular.Top(ctx, exclude, topN-len(recs))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		logger.Debug("no neighbor candidates, use popular products")
	}
	return append(recs, backfill...), nil
}

// neighborScores accumulates quantity/(distance+eps) per product bought by a
// neighbour, skipping products in purchased.
func (c *Collaborative) neighborScores(ctx context.Context, neighbors []model.Neighbor, purchased map[int64]struct{}) (map[int64]float64, error) {
	scores := make(map[int64]float64)
	if len(neighbors) == 0 {
		return scores, nil
	}
	weights := make(map[int64]float64, len(neighbors))
	ids := make([]int64, 0, len(neighbors))
	for _, n := range neighbors {
		weights[n.ID] = 1 / (n.Distance + neighborEpsilon)
		ids = append(ids, n.ID)
	}
	rows, err := c.purchases.NeighborPurchases(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load neighbor purchases: %w", err)
	}
	for _, row := range rows {
		if _, ok := purchased[row.ProductID]; ok {
			continue
		}
		w, ok := weights[row.CustomerID]
		if !ok {
			continue
		}
		scores[row.ProductID] += w * row.Quantity
	}
	return scores, nil
}

// SimilarCustomers lists the customers nearest to customerID in the given
// customer space. A customer without a vector has no similar customers.
func (c *Collaborative) SimilarCustomers(ctx context.Context, space model.EmbeddingSpace, customerID int64, topN int) ([]model.SimilarCustomer, error) {
	if space != model.SpaceCustomerPurchase && space != model.SpaceCustomerContent {
		return nil, fmt.Errorf("space %s is not a customer space", space)
	}
	out := []model.SimilarCustomer{}
	if topN <= 0 {
		return out, nil
	}
	vec, ok, err := c.store.Get(ctx, space, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer embedding: %w", err)
	}
	if !ok {
		return out, nil
	}
	neighbors, err := c.store.Nearest(ctx, space, vec, []int64{customerID}, topN)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	for _, n := range neighbors {
		out = append(out, model.SimilarCustomer{
			CustomerID:      n.ID,
			SimilarityScore: DistanceToSimilarity(n.Distance),
			Distance:        n.Distance,
		})
	}
	return out, nil
}
