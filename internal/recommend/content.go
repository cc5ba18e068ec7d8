package recommend

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

const (
	DefaultMinSimilarity = 0.1
	DefaultCandidatePool = 20
	maxParallelLookups   = 8
)

// Content scores products by their similarity to everything the customer
// bought. Similarities from different purchases are summed, so products close
// to several purchases rank higher.
type Content struct {
	store         VectorStore
	purchases     PurchaseSource
	catalog       Catalog
	popular       *Popularity
	minSimilarity float64
	candidatePool int
}

func NewContent(store VectorStore, purchases PurchaseSource, catalog Catalog, popular *Popularity, minSimilarity float64, candidatePool int) *Content {
	if candidatePool <= 0 {
		candidatePool = DefaultCandidatePool
	}
	return &Content{
		store:         store,
		purchases:     purchases,
		catalog:       catalog,
		popular:       popular,
		minSimilarity: minSimilarity,
		candidatePool: candidatePool,
	}
}

func (c *Content) Recommend(ctx context.Context, customerID int64, topN int) ([]model.Recommendation, error) {
	logger := logutil.GetLogger(ctx).With(zap.Int64("customer_id", customerID), zap.String("strategy", string(model.StrategyContent)))
	if topN <= 0 {
		return []model.Recommendation{}, nil
	}
	purchased, err := c.purchases.PurchasedProductIDs(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	if len(purchased) == 0 {
		logger.Debug("no purchase history, use popular products")
		return c.popular.Top(ctx, nil, topN)
	}
	vectors, err := c.store.GetMany(ctx, model.SpaceProduct, purchased)
	if err != nil {
		return nil, fmt.Errorf("load product embeddings: %w", err)
	}
	if len(vectors) == 0 {
		logger.Debug("no embeddings for purchased products, use popular products")
		return c.popular.Top(ctx, purchased, topN)
	}
	scores, err := c.similarityScores(ctx, purchased, vectors, topN)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		logger.Debug("no similar products above threshold, use popular products")
		return c.popular.Top(ctx, purchased, topN)
	}
	recs, err := withMetadata(ctx, c.catalog, rank(scores, topN), model.ReasonContentBased, true)
	if err != nil {
		return nil, fmt.Errorf("load product metadata: %w", err)
	}
	if len(recs) == 0 {
		logger.Debug("no ranked product left after metadata lookup, use popular products")
		return c.popular.Top(ctx, purchased, topN)
	}
	return recs, nil
}

// similarityScores runs one neighbour query per purchased product in
// parallel. Results are summed in purchase order so the floating point sum
// does not depend on scheduling.
func (c *Content) similarityScores(ctx context.Context, purchased []int64, vectors map[int64][]float32, topN int) (map[int64]float64, error) {
	pool := c.candidatePool
	if topN > pool {
		pool = topN
	}
	sources := make([]int64, 0, len(vectors))
	for _, id := range purchased {
		if _, ok := vectors[id]; ok {
			sources = append(sources, id)
		}
	}
	results := make([][]model.Neighbor, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for i, id := range sources {
		g.Go(func() error {
			neighbors, err := c.store.Nearest(gctx, model.SpaceProduct, vectors[id], purchased, pool)
			if err != nil {
				return fmt.Errorf("query neighbors of product %d: %w", id, err)
			}
			results[i] = neighbors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	bought := idSet(purchased)
	scores := make(map[int64]float64)
	for _, neighbors := range results {
		for _, n := range neighbors {
			if _, ok := bought[n.ID]; ok {
				continue
			}
			sim := DistanceToSimilarity(n.Distance)
			if sim < c.minSimilarity {
				continue
			}
			scores[n.ID] += sim
		}
	}
	return scores, nil
}

// SimilarProducts lists products closest to productID. A product without a
// vector has no similar products.
func (c *Content) SimilarProducts(ctx context.Context, productID int64, topN int) ([]model.Recommendation, error) {
	if topN <= 0 {
		return []model.Recommendation{}, nil
	}
	vec, ok, err := c.store.Get(ctx, model.SpaceProduct, productID)
	if err != nil {
		return nil, fmt.Errorf("load product embedding: %w", err)
	}
	if !ok {
		return []model.Recommendation{}, nil
	}
	neighbors, err := c.store.Nearest(ctx, model.SpaceProduct, vec, []int64{productID}, topN)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	items := make([]scored, 0, len(neighbors))
	for _, n := range neighbors {
		sim := DistanceToSimilarity(n.Distance)
		if sim < c.minSimilarity || n.ID == productID {
			continue
		}
		items = append(items, scored{id: n.ID, score: sim})
	}
	return withMetadata(ctx, c.catalog, items, model.ReasonSimilarProduct, true)
}
