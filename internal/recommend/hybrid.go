package recommend

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
)

const (
	DefaultCFWeight      = 0.6
	DefaultContentWeight = 0.4
	weightTolerance      = 0.01
)

type Weights struct {
	CF      float64 `json:"cf_weight"`
	Content float64 `json:"content_weight"`
}

func (w Weights) Validate() error {
	if w.CF < 0 || w.Content < 0 || math.IsNaN(w.CF) || math.IsNaN(w.Content) {
		return fmt.Errorf("weights must be non-negative: %w", appErr.ErrInvalidWeights)
	}
	if math.Abs(w.CF+w.Content-1) > weightTolerance {
		return fmt.Errorf("weights sum to %.3f: %w", w.CF+w.Content, appErr.ErrInvalidWeights)
	}
	return nil
}

// Hybrid blends a collaborative and a content recommender by weighted score
// sum.
type Hybrid struct {
	cf      Recommender
	content Recommender

	mu      sync.RWMutex
	weights Weights
}

func NewHybrid(cf, content Recommender, weights Weights) (*Hybrid, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Hybrid{cf: cf, content: content, weights: weights}, nil
}

func (h *Hybrid) Weights() Weights {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.weights
}

// SetWeights replaces the blend weights. Invalid weights leave the current
// ones in place.
func (h *Hybrid) SetWeights(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	h.weights = w
	h.mu.Unlock()
	return nil
}

func (h *Hybrid) Recommend(ctx context.Context, customerID int64, topN int) ([]model.Recommendation, error) {
	if topN <= 0 {
		return []model.Recommendation{}, nil
	}
	logger := logutil.GetLogger(ctx).With(zap.Int64("customer_id", customerID), zap.String("strategy", string(model.StrategyHybrid)))
	w := h.Weights()
	var (
		cfRecs, contentRecs []model.Recommendation
		cfErr, contentErr   error
	)
	// sub-recommender errors are kept apart so one can fail alone
	var g errgroup.Group
	g.Go(func() error {
		cfRecs, cfErr = h.cf.Recommend(ctx, customerID, 2*topN)
		return nil
	})
	g.Go(func() error {
		contentRecs, contentErr = h.content.Recommend(ctx, customerID, 2*topN)
		return nil
	})
	_ = g.Wait()
	switch {
	case cfErr != nil && contentErr != nil:
		return nil, fmt.Errorf("collaborative: %w; content: %v", cfErr, contentErr)
	case cfErr != nil:
		logger.Warn("collaborative recommender failed, use content results", zap.Error(cfErr))
		return truncate(contentRecs, topN), nil
	case contentErr != nil:
		logger.Warn("content recommender failed, use collaborative results", zap.Error(contentErr))
		return truncate(cfRecs, topN), nil
	}
	return Combine(cfRecs, contentRecs, w, topN), nil
}

// Combine merges two ranked lists into weighted scores. Metadata of a product
// comes from the first list holding it, the collaborative one being read
// first.
func Combine(cfRecs, contentRecs []model.Recommendation, w Weights, topN int) []model.Recommendation {
	scores := make(map[int64]float64, len(cfRecs)+len(contentRecs))
	meta := make(map[int64]model.Recommendation, len(cfRecs)+len(contentRecs))
	for _, r := range cfRecs {
		scores[r.ProductID] += r.Score * w.CF
		if _, ok := meta[r.ProductID]; !ok {
			meta[r.ProductID] = r
		}
	}
	for _, r := range contentRecs {
		scores[r.ProductID] += r.Score * w.Content
		if _, ok := meta[r.ProductID]; !ok {
			meta[r.ProductID] = r
		}
	}
	ranked := rank(scores, topN)
	out := make([]model.Recommendation, 0, len(ranked))
	for _, it := range ranked {
		rec := meta[it.id]
		rec.Score = it.score
		rec.Reason = model.ReasonHybrid
		out = append(out, rec)
	}
	return out
}

func truncate(recs []model.Recommendation, topN int) []model.Recommendation {
	if len(recs) > topN {
		return recs[:topN]
	}
	return recs
}
