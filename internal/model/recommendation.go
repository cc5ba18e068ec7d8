package model

import "time"

type Reason string

const (
	ReasonCustomersLikeYou Reason = "customers_like_you"
	ReasonContentBased     Reason = "content_based"
	ReasonSimilarProduct   Reason = "similar_product"
	ReasonPopular          Reason = "popular"
	ReasonHybrid           Reason = "hybrid"
)

type Strategy string

const (
	StrategyCollaborative Strategy = "cf"
	StrategyContent       Strategy = "content"
	StrategyHybrid        Strategy = "hybrid"
	StrategyPopular       Strategy = "popular"
)

func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyCollaborative, StrategyContent, StrategyHybrid, StrategyPopular:
		return Strategy(s), true
	case "":
		return StrategyHybrid, true
	}
	return "", false
}

type Recommendation struct {
	ProductID int64   `json:"product_id"`
	Score     float64 `json:"score"`
	Reason    Reason  `json:"reason"`
	Name      string  `json:"name,omitempty"`
	Category  string  `json:"category,omitempty"`
	Price     float64 `json:"price,omitempty"`

	ModelVersionID int64 `json:"model_version_id,omitempty"`
}

type SimilarCustomer struct {
	CustomerID      int64   `json:"customer_id"`
	SimilarityScore float64 `json:"similarity_score"`
	Distance        float64 `json:"distance"`
}

type ModelMetrics struct {
	TotalCustomers           int64      `json:"total_customers"`
	TotalProducts            int64      `json:"total_products"`
	TotalPurchases           int64      `json:"total_purchases"`
	AvgPurchasesPerCustomer  float64    `json:"avg_purchases_per_customer"`
	ModelVersionID           int64      `json:"model_version_id,omitempty"`
	ModelLastTrained         *time.Time `json:"model_last_trained,omitempty"`
	Sparsity                 float64    `json:"sparsity"`
	ProductEmbeddings        int64      `json:"product_embeddings"`
	CustomerEmbeddings       int64      `json:"customer_embeddings"`
	CustomerProfileEmbedding int64      `json:"customer_profile_embeddings"`
}
