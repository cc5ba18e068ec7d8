package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errcode"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/response"
)

type StatusService interface {
	IsReady() bool
	Metrics(ctx context.Context) (*model.ModelMetrics, error)
	Versions(ctx context.Context, limit int) ([]model.ModelVersion, error)
}

type StatusHandler struct {
	svc  StatusService
	ping func(ctx context.Context) error
}

// NewStatusHandler takes ping to probe the database for health checks.
func NewStatusHandler(svc StatusService, ping func(ctx context.Context) error) *StatusHandler {
	return &StatusHandler{svc: svc, ping: ping}
}

type healthResponse struct {
	Status               string `json:"status"`
	DatabaseConnected    bool   `json:"database_connected"`
	RecommendationsReady bool   `json:"recommendations_ready"`
}

func (h *StatusHandler) Health(c *gin.Context) {
	res := healthResponse{Status: "unhealthy", RecommendationsReady: h.svc.IsReady()}
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("database ping failed", zap.Error(err))
		} else {
			res.DatabaseConnected = true
		}
	}
	if res.DatabaseConnected && res.RecommendationsReady {
		res.Status = "healthy"
	}
	response.Success(c, res)
}

func (h *StatusHandler) Metrics(c *gin.Context) {
	m, err := h.svc.Metrics(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, m)
}

func (h *StatusHandler) Models(c *gin.Context) {
	limit := 20
	if value := c.Query("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 || parsed > 100 {
			response.Error(c, errcode.ErrInvalid, "invalid limit")
			return
		}
		limit = parsed
	}
	versions, err := h.svc.Versions(c.Request.Context(), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, versions)
}
