package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errcode"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/response"
)

type RecommendationService interface {
	Recommend(ctx context.Context, customerID int64, limit int, strategy model.Strategy) ([]model.Recommendation, error)
	SimilarCustomers(ctx context.Context, customerID int64, limit int, byContent bool) ([]model.SimilarCustomer, error)
	SimilarProducts(ctx context.Context, productID int64, limit int) ([]model.Recommendation, error)
}

type RecommendationHandler struct {
	svc RecommendationService
}

func NewRecommendationHandler(svc RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{svc: svc}
}

func (h *RecommendationHandler) Recommend(c *gin.Context) {
	customerID, ok := parseIDParam(c, "customer_id")
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	strategy, ok := model.ParseStrategy(c.Query("strategy"))
	if !ok {
		response.Error(c, errcode.ErrInvalid, "unknown strategy")
		return
	}
	recs, err := h.svc.Recommend(c.Request.Context(), customerID, limit, strategy)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, recs)
}

func (h *RecommendationHandler) SimilarCustomers(c *gin.Context) {
	customerID, ok := parseIDParam(c, "customer_id")
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	var byContent bool
	switch c.DefaultQuery("by", "purchase") {
	case "purchase":
	case "content":
		byContent = true
	default:
		response.Error(c, errcode.ErrInvalid, "by must be purchase or content")
		return
	}
	customers, err := h.svc.SimilarCustomers(c.Request.Context(), customerID, limit, byContent)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, customers)
}

func (h *RecommendationHandler) SimilarProducts(c *gin.Context) {
	productID, ok := parseIDParam(c, "product_id")
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	products, err := h.svc.SimilarProducts(c.Request.Context(), productID, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, products)
}
