package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/cache"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/embedding"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/filestore"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/metrics"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/recommend"
)

type PurchaseStore interface {
	recommend.PurchaseSource
	AggregateAll(ctx context.Context) ([]model.PurchaseAggregate, error)
	PurchaseQuantities(ctx context.Context, customerID int64) (map[int64]float64, error)
	CustomerIDsWithPurchases(ctx context.Context) ([]int64, error)
}

type ProductStore interface {
	recommend.Catalog
	ListAll(ctx context.Context) ([]model.Product, error)
}

type VersionStore interface {
	Create(ctx context.Context, name string, dimension int, params, metrics map[string]interface{}) (*model.ModelVersion, error)
	Latest(ctx context.Context) (*model.ModelVersion, error)
	List(ctx context.Context, limit int) ([]model.ModelVersion, error)
}

type StatsStore interface {
	CatalogStats(ctx context.Context) (*model.CatalogStats, error)
}

type RecommendDeps struct {
	Vectors   recommend.VectorStore
	Purchases PurchaseStore
	Products  ProductStore
	// Catalog resolves display metadata; defaults to Products.
	Catalog   recommend.Catalog
	Versions  VersionStore
	Stats     StatsStore
	Cache     cache.Cache
	Artifacts filestore.Store
}

type RecommendOptions struct {
	ModelName        string
	Dimension        int
	MaxFeatures      int
	Weights          recommend.Weights
	KNeighbors       int
	MinSimilarity    float64
	CandidatePool    int
	DefaultLimit     int
	MaxLimit         int
	CacheTTL         time.Duration
	BatchSize        int
	WeightByQuantity bool
}

type RetrainResult struct {
	RunID                  string        `json:"run_id"`
	ModelVersionID         int64         `json:"model_version_id"`
	Customers              int           `json:"customers"`
	Products               int           `json:"products"`
	ProductEmbeddings      int           `json:"product_embeddings"`
	PurchaseEmbeddings     int           `json:"customer_embeddings"`
	ContentProfiles        int           `json:"customer_profile_embeddings"`
	SkippedProducts        int           `json:"skipped_products"`
	SkippedPurchaseVectors int           `json:"skipped_customers"`
	SkippedProfiles        int           `json:"skipped_profiles"`
	VocabularySize         int           `json:"vocabulary_size"`
	Sparsity               float64       `json:"sparsity"`
	Duration               time.Duration `json:"duration"`
}

// RecommendService is the boundary between the HTTP layer and the
// recommenders. The current model is an immutable snapshot swapped
// atomically after each retrain.
type RecommendService struct {
	deps RecommendDeps
	opts RecommendOptions

	popular    *recommend.Popularity
	cf         *recommend.Collaborative
	content    *recommend.Content
	hybrid     *recommend.Hybrid
	tfidf      *embedding.TFIDF
	aggregator *embedding.ContentAggregator

	snapshot   atomic.Pointer[recommend.Snapshot]
	retraining atomic.Bool
}

func NewRecommendService(deps RecommendDeps, opts RecommendOptions) (*RecommendService, error) {
	if deps.Vectors == nil || deps.Purchases == nil || deps.Products == nil || deps.Versions == nil || deps.Stats == nil {
		return nil, fmt.Errorf("recommend service: missing dependency")
	}
	if deps.Catalog == nil {
		deps.Catalog = deps.Products
	}
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}
	if opts.Dimension <= 0 {
		opts.Dimension = embedding.DefaultDimension
	}
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = opts.Dimension
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.ModelName == "" {
		opts.ModelName = "hybrid_recommendation_model"
	}
	tfidf, err := embedding.NewTFIDF(opts.Dimension, opts.MaxFeatures)
	if err != nil {
		return nil, err
	}
	s := &RecommendService{
		deps:       deps,
		opts:       opts,
		tfidf:      tfidf,
		aggregator: embedding.NewContentAggregator(opts.Dimension, opts.WeightByQuantity),
	}
	s.popular = recommend.NewPopularity(deps.Purchases, deps.Catalog)
	s.cf = recommend.NewCollaborative(deps.Vectors, deps.Purchases, deps.Catalog, s.popular, opts.KNeighbors)
	s.content = recommend.NewContent(deps.Vectors, deps.Purchases, deps.Catalog, s.popular, opts.MinSimilarity, opts.CandidatePool)
	s.hybrid, err = recommend.NewHybrid(s.cf, s.content, opts.Weights)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Bootstrap restores the snapshot of the latest model version after a
// restart. Without any version the service stays not ready.
func (s *RecommendService) Bootstrap(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	version, err := s.deps.Versions.Latest(ctx)
	if err != nil {
		if appErr.IsNotFound(err) {
			logger.Info("no model version yet, retrain required")
			return nil
		}
		return fmt.Errorf("load latest model version: %w", err)
	}
	aggs, err := s.deps.Purchases.AggregateAll(ctx)
	if err != nil {
		return fmt.Errorf("load purchases: %w", err)
	}
	snap := &recommend.Snapshot{
		VersionID: version.ID,
		Dimension: version.Dimension,
		TrainedAt: version.CreatedAt,
		Matrix:    embedding.BuildPurchaseMatrix(aggs),
	}
	if s.deps.Artifacts != nil {
		vocab, err := filestore.LoadVocabulary(ctx, s.deps.Artifacts, version.ID)
		if err != nil {
			logger.Warn("load vocabulary failed", zap.Int64("model_version_id", version.ID), zap.Error(err))
		} else {
			snap.Vocabulary = vocab.Terms
		}
	}
	s.snapshot.Store(snap)
	metrics.ModelVersion.Set(float64(version.ID))
	logger.Info("model snapshot restored", zap.Int64("model_version_id", version.ID), zap.Time("trained_at", version.CreatedAt))
	return nil
}

// Retrain refits every embedding under a new model version. Rows are
// written in batches, not in one transaction: a failure part way leaves the
// rows already written in place until the next successful retrain.
func (s *RecommendService) Retrain(ctx context.Context) (*RetrainResult, error) {
	if !s.retraining.CompareAndSwap(false, true) {
		return nil, appErr.ErrRetrainRunning
	}
	defer s.retraining.Store(false)

	start := time.Now()
	res := &RetrainResult{RunID: uuid.NewString()}
	logger := logutil.GetLogger(ctx).With(zap.String("run_id", res.RunID))
	err := s.retrain(ctx, res)
	res.Duration = time.Since(start)
	metrics.RetrainDuration.Observe(res.Duration.Seconds())
	if err != nil {
		metrics.RetrainsTotal.WithLabelValues("error").Inc()
		logger.Error("retrain failed", zap.Error(err), zap.Duration("duration", res.Duration))
		return nil, err
	}
	metrics.RetrainsTotal.WithLabelValues("ok").Inc()
	logger.Info("retrain finished",
		zap.Int64("model_version_id", res.ModelVersionID),
		zap.Int("product_embeddings", res.ProductEmbeddings),
		zap.Int("customer_embeddings", res.PurchaseEmbeddings),
		zap.Int("customer_profile_embeddings", res.ContentProfiles),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (s *RecommendService) retrain(ctx context.Context, res *RetrainResult) error {
	logger := logutil.GetLogger(ctx).With(zap.String("run_id", res.RunID))
	if err := s.deps.Vectors.Available(ctx); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	aggs, err := s.deps.Purchases.AggregateAll(ctx)
	if err != nil {
		return fmt.Errorf("load purchases: %w", err)
	}
	products, err := s.deps.Products.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	matrix := embedding.BuildPurchaseMatrix(aggs)
	if matrix.Customers() == 0 || len(products) == 0 {
		return appErr.ErrNoData
	}
	logger.Info("retrain data loaded", zap.Int("customers", matrix.Customers()), zap.Int("products", len(products)))

	fitted := s.tfidf.Fit(products)
	productVecs := sortedEmbeddings(fitted.Vectors)
	purchaseVecs, skippedPurchase := embedding.EmbedPurchasePatterns(matrix, s.opts.Dimension)
	profiles, skippedProfiles, err := s.aggregator.ProfileAll(ctx, matrix, embedding.StaticVectors(fitted.Vectors))
	if err != nil {
		return fmt.Errorf("aggregate content profiles: %w", err)
	}

	res.Customers = matrix.Customers()
	res.Products = len(products)
	res.VocabularySize = len(fitted.Vocabulary)
	res.Sparsity = matrix.Sparsity()
	res.SkippedProducts = fitted.Skipped
	res.SkippedPurchaseVectors = skippedPurchase
	res.SkippedProfiles = skippedProfiles

	version, err := s.deps.Versions.Create(ctx, s.opts.ModelName, s.opts.Dimension,
		map[string]interface{}{
			"tfidf_max_features": s.opts.MaxFeatures,
			"ngram_range":        []int{1, 2},
			"cf_dim":             s.opts.Dimension,
			"weight_by_quantity": s.opts.WeightByQuantity,
			"run_id":             res.RunID,
		},
		map[string]interface{}{
			"n_customers":     res.Customers,
			"n_products":      res.Products,
			"sparsity":        res.Sparsity,
			"vocabulary_size": res.VocabularySize,
		})
	if err != nil {
		return fmt.Errorf("create model version: %w", err)
	}
	res.ModelVersionID = version.ID

	if err := s.writeBatches(ctx, model.SpaceProduct, productVecs, version.ID); err != nil {
		return err
	}
	res.ProductEmbeddings = len(productVecs)
	if err := s.writeBatches(ctx, model.SpaceCustomerPurchase, purchaseVecs, version.ID); err != nil {
		return err
	}
	res.PurchaseEmbeddings = len(purchaseVecs)
	if err := s.writeBatches(ctx, model.SpaceCustomerContent, profiles, version.ID); err != nil {
		return err
	}
	res.ContentProfiles = len(profiles)

	if s.deps.Artifacts != nil {
		vocab := &filestore.Vocabulary{VersionID: version.ID, Terms: fitted.Vocabulary, CreatedAt: version.CreatedAt}
		if err := filestore.SaveVocabulary(ctx, s.deps.Artifacts, vocab); err != nil {
			logger.Warn("save vocabulary failed", zap.Error(err))
		}
	}

	s.snapshot.Store(&recommend.Snapshot{
		VersionID:              version.ID,
		Dimension:              s.opts.Dimension,
		TrainedAt:              version.CreatedAt,
		Matrix:                 matrix,
		Vocabulary:             fitted.Vocabulary,
		ProductVectors:         res.ProductEmbeddings,
		PurchaseVectors:        res.PurchaseEmbeddings,
		ContentProfileVectors:  res.ContentProfiles,
		SkippedProducts:        res.SkippedProducts,
		SkippedPurchaseVectors: res.SkippedPurchaseVectors,
		SkippedProfileVectors:  res.SkippedProfiles,
	})
	metrics.ModelVersion.Set(float64(version.ID))
	if p, ok := s.deps.Catalog.(cache.Purger); ok {
		p.Purge()
	}
	if _, err := s.InvalidateAll(ctx); err != nil {
		logger.Warn("invalidate cache after retrain failed", zap.Error(err))
	}
	return nil
}

func (s *RecommendService) writeBatches(ctx context.Context, space model.EmbeddingSpace, items []model.Embedding, versionID int64) error {
	for start := 0; start < len(items); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(items) {
			end = len(items)
		}
		if err := s.deps.Vectors.Upsert(ctx, space, items[start:end], versionID); err != nil {
			return fmt.Errorf("write %s embeddings: %w", space, err)
		}
		metrics.EmbeddingsWritten.WithLabelValues(string(space)).Add(float64(end - start))
	}
	return nil
}

// NormalizeLimit applies the default for 0 and rejects values outside
// [1, MaxLimit].
func (s *RecommendService) NormalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return s.opts.DefaultLimit, nil
	}
	if limit < 1 || limit > s.opts.MaxLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d: %w", s.opts.MaxLimit, appErr.ErrInvalid)
	}
	return limit, nil
}

func (s *RecommendService) Recommend(ctx context.Context, customerID int64, limit int, strategy model.Strategy) ([]model.Recommendation, error) {
	limit, err := s.NormalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	r, err := s.recommender(strategy)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.Int64("customer_id", customerID), zap.String("strategy", string(strategy)))
	key := cache.RecommendationKey(string(strategy), customerID, limit)
	if recs, ok := s.cached(ctx, key); ok {
		return recs, nil
	}
	snap := s.snapshot.Load()
	start := time.Now()
	recs, err := r.Recommend(ctx, customerID, limit)
	metrics.ObserveRecommendation(string(strategy), start, err)
	if err != nil {
		return nil, err
	}
	stampVersion(recs, snap)
	if raw, err := json.Marshal(recs); err == nil {
		if err := s.deps.Cache.Set(ctx, key, raw, s.opts.CacheTTL); err != nil {
			logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return recs, nil
}

// cached treats every cache failure as a miss.
func (s *RecommendService) cached(ctx context.Context, key string) ([]model.Recommendation, bool) {
	raw, ok, err := s.deps.Cache.Get(ctx, key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		logutil.GetLogger(ctx).Debug("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	var recs []model.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return recs, true
}

func (s *RecommendService) recommender(strategy model.Strategy) (recommend.Recommender, error) {
	switch strategy {
	case model.StrategyCollaborative:
		return s.cf, nil
	case model.StrategyContent:
		return s.content, nil
	case model.StrategyHybrid:
		return s.hybrid, nil
	case model.StrategyPopular:
		return s.popular, nil
	}
	return nil, fmt.Errorf("unknown strategy %q: %w", strategy, appErr.ErrInvalid)
}

// SimilarCustomers compares purchase patterns, or content profiles when
// byContent is set.
func (s *RecommendService) SimilarCustomers(ctx context.Context, customerID int64, limit int, byContent bool) ([]model.SimilarCustomer, error) {
	limit, err := s.NormalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	space := model.SpaceCustomerPurchase
	if byContent {
		space = model.SpaceCustomerContent
	}
	return s.cf.SimilarCustomers(ctx, space, customerID, limit)
}

func (s *RecommendService) SimilarProducts(ctx context.Context, productID int64, limit int) ([]model.Recommendation, error) {
	limit, err := s.NormalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	snap := s.snapshot.Load()
	recs, err := s.content.SimilarProducts(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	stampVersion(recs, snap)
	return recs, nil
}

// stampVersion tags results with the model version that was live when the
// query started. Cold-start results before any training stay untagged.
func stampVersion(recs []model.Recommendation, snap *recommend.Snapshot) {
	if snap == nil {
		return
	}
	for i := range recs {
		recs[i].ModelVersionID = snap.VersionID
	}
}

func (s *RecommendService) IsReady() bool {
	return s.snapshot.Load() != nil
}

func (s *RecommendService) Snapshot() *recommend.Snapshot {
	return s.snapshot.Load()
}

func (s *RecommendService) Metrics(ctx context.Context) (*model.ModelMetrics, error) {
	stats, err := s.deps.Stats.CatalogStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog stats: %w", err)
	}
	out := &model.ModelMetrics{
		TotalCustomers: stats.TotalCustomers,
		TotalProducts:  stats.TotalProducts,
		TotalPurchases: stats.TotalPurchases,
	}
	if stats.TotalCustomers > 0 {
		out.AvgPurchasesPerCustomer = float64(stats.TotalPurchases) / float64(stats.TotalCustomers)
	}
	if snap := s.snapshot.Load(); snap != nil {
		trained := snap.TrainedAt
		out.ModelVersionID = snap.VersionID
		out.ModelLastTrained = &trained
		out.Sparsity = snap.Sparsity()
	}
	counts := []struct {
		space model.EmbeddingSpace
		dst   *int64
	}{
		{model.SpaceProduct, &out.ProductEmbeddings},
		{model.SpaceCustomerPurchase, &out.CustomerEmbeddings},
		{model.SpaceCustomerContent, &out.CustomerProfileEmbedding},
	}
	for _, c := range counts {
		n, err := s.deps.Vectors.Count(ctx, c.space)
		if err != nil {
			// counts are informative only
			logutil.GetLogger(ctx).Warn("count embeddings failed", zap.String("space", string(c.space)), zap.Error(err))
			continue
		}
		*c.dst = n
	}
	return out, nil
}

func (s *RecommendService) Versions(ctx context.Context, limit int) ([]model.ModelVersion, error) {
	return s.deps.Versions.List(ctx, limit)
}

func (s *RecommendService) Weights() recommend.Weights {
	return s.hybrid.Weights()
}

// SetWeights changes the hybrid blend and drops cached hybrid results.
func (s *RecommendService) SetWeights(ctx context.Context, w recommend.Weights) error {
	if err := s.hybrid.SetWeights(w); err != nil {
		return err
	}
	if _, err := s.deps.Cache.DeletePattern(ctx, "rec:"+string(model.StrategyHybrid)+":*"); err != nil {
		logutil.GetLogger(ctx).Warn("invalidate hybrid cache failed", zap.Error(err))
	}
	return nil
}

func (s *RecommendService) InvalidateCustomer(ctx context.Context, customerID int64) (int, error) {
	return s.deps.Cache.DeletePattern(ctx, cache.CustomerPattern(customerID))
}

func (s *RecommendService) InvalidateAll(ctx context.Context) (int, error) {
	return s.deps.Cache.DeletePattern(ctx, cache.AllRecommendationsPattern)
}

type storedProductVectors struct {
	store recommend.VectorStore
}

func (s storedProductVectors) ProductVectors(ctx context.Context, ids []int64) (map[int64][]float32, error) {
	return s.store.GetMany(ctx, model.SpaceProduct, ids)
}

// RefreshCustomerProfile recomputes one customer's content profile from the
// stored product vectors, e.g. after new purchases. ok is false when none of
// the purchased products has a vector.
func (s *RecommendService) RefreshCustomerProfile(ctx context.Context, customerID int64) (bool, error) {
	quantities, err := s.deps.Purchases.PurchaseQuantities(ctx, customerID)
	if err != nil {
		return false, fmt.Errorf("load purchases: %w", err)
	}
	vec, ok, err := s.aggregator.Profile(ctx, quantities, storedProductVectors{store: s.deps.Vectors})
	if err != nil {
		return false, fmt.Errorf("aggregate content profile: %w", err)
	}
	if !ok {
		return false, nil
	}
	var versionID int64
	if snap := s.snapshot.Load(); snap != nil {
		versionID = snap.VersionID
	}
	if err := s.deps.Vectors.Upsert(ctx, model.SpaceCustomerContent, []model.Embedding{{ID: customerID, Vector: vec}}, versionID); err != nil {
		return false, fmt.Errorf("write content profile: %w", err)
	}
	if _, err := s.InvalidateCustomer(ctx, customerID); err != nil {
		logutil.GetLogger(ctx).Warn("invalidate customer cache failed", zap.Int64("customer_id", customerID), zap.Error(err))
	}
	return true, nil
}

// RefreshAllProfiles recomputes the content profile of every customer with
// purchases and reports how many got a vector.
func (s *RecommendService) RefreshAllProfiles(ctx context.Context) (int, error) {
	ids, err := s.deps.Purchases.CustomerIDsWithPurchases(ctx)
	if err != nil {
		return 0, fmt.Errorf("load customers: %w", err)
	}
	refreshed := 0
	for _, id := range ids {
		ok, err := s.RefreshCustomerProfile(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return refreshed, err
			}
			return refreshed, fmt.Errorf("customer %d: %w", id, err)
		}
		if ok {
			refreshed++
		}
	}
	return refreshed, nil
}

func sortedEmbeddings(vectors map[int64][]float32) []model.Embedding {
	out := make([]model.Embedding, 0, len(vectors))
	for id, v := range vectors {
		out = append(out, model.Embedding{ID: id, Vector: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
