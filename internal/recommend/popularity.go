package recommend

import (
	"context"
	"fmt"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

// Popularity is the cold-start ranking: products by historical purchase
// count, the count being the score.
type Popularity struct {
	purchases PurchaseSource
	catalog   Catalog
}

func NewPopularity(purchases PurchaseSource, catalog Catalog) *Popularity {
	return &Popularity{purchases: purchases, catalog: catalog}
}

// Top returns the topN most purchased products not in exclude.
func (p *Popularity) Top(ctx context.Context, exclude []int64, topN int) ([]model.Recommendation, error) {
	if topN <= 0 {
		return []model.Recommendation{}, nil
	}
	popular, err := p.purchases.PopularProducts(ctx, exclude, topN)
	if err != nil {
		return nil, fmt.Errorf("load popular products: %w", err)
	}
	items := make([]scored, 0, len(popular))
	for _, pp := range popular {
		items = append(items, scored{id: pp.ProductID, score: float64(pp.PurchaseCount)})
	}
	return withMetadata(ctx, p.catalog, items, model.ReasonPopular, false)
}

// Recommend serves the popularity list as a strategy of its own, leaving out
// what the customer already bought.
func (p *Popularity) Recommend(ctx context.Context, customerID int64, topN int) ([]model.Recommendation, error) {
	purchased, err := p.purchases.PurchasedProductIDs(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	return p.Top(ctx, purchased, topN)
}
