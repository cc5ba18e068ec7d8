package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/middleware"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errcode"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/response"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/recommend"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/service"
)

type AdminService interface {
	Retrain(ctx context.Context) (*service.RetrainResult, error)
	Weights() recommend.Weights
	SetWeights(ctx context.Context, w recommend.Weights) error
	InvalidateCustomer(ctx context.Context, customerID int64) (int, error)
	InvalidateAll(ctx context.Context) (int, error)
	RefreshCustomerProfile(ctx context.Context, customerID int64) (bool, error)
}

type AdminHandler struct {
	svc AdminService
}

func NewAdminHandler(svc AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) Retrain(c *gin.Context) {
	logutil.GetLogger(c.Request.Context()).Info("retrain requested", zap.String("subject", c.GetString(middleware.ContextSubjectKey)))
	res, err := h.svc.Retrain(detached(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

type weightsRequest struct {
	CFWeight      *float64 `json:"cf_weight"`
	ContentWeight *float64 `json:"content_weight"`
}

type weightsResponse struct {
	CFWeight      float64 `json:"cf_weight"`
	ContentWeight float64 `json:"content_weight"`
}

func (h *AdminHandler) GetWeights(c *gin.Context) {
	w := h.svc.Weights()
	response.Success(c, weightsResponse{CFWeight: w.CF, ContentWeight: w.Content})
}

func (h *AdminHandler) SetWeights(c *gin.Context) {
	var req weightsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CFWeight == nil || req.ContentWeight == nil {
		response.Error(c, errcode.ErrInvalid, "cf_weight and content_weight are required")
		return
	}
	w := recommend.Weights{CF: *req.CFWeight, Content: *req.ContentWeight}
	if err := h.svc.SetWeights(c.Request.Context(), w); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, weightsResponse{CFWeight: w.CF, ContentWeight: w.Content})
}

func (h *AdminHandler) InvalidateCustomer(c *gin.Context) {
	customerID, ok := parseIDParam(c, "customer_id")
	if !ok {
		return
	}
	n, err := h.svc.InvalidateCustomer(c.Request.Context(), customerID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"customer_id": customerID, "deleted": n})
}

func (h *AdminHandler) InvalidateAll(c *gin.Context) {
	n, err := h.svc.InvalidateAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

func (h *AdminHandler) RefreshProfile(c *gin.Context) {
	customerID, ok := parseIDParam(c, "customer_id")
	if !ok {
		return
	}
	refreshed, err := h.svc.RefreshCustomerProfile(detached(c), customerID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"customer_id": customerID, "refreshed": refreshed})
}

// detached keeps the request's values but not its cancellation, so a client
// that hangs up cannot stop a write halfway through a model version.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
