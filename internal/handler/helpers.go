package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/middleware"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errcode"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.HeaderRequestID)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalidWeights):
		response.Error(c, errcode.ErrInvalidWeights, err.Error())
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrNoData):
		response.Error(c, errcode.ErrNoData, err.Error())
	case errors.Is(err, appErr.ErrRetrainRunning):
		response.ErrorStatus(c, http.StatusConflict, errcode.ErrRetrainRunning, err.Error())
	case errors.Is(err, appErr.ErrUnavailable):
		response.ErrorStatus(c, http.StatusServiceUnavailable, errcode.ErrDegraded, "degraded: vector store unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		response.ErrorStatus(c, http.StatusServiceUnavailable, errcode.ErrDegraded, "degraded: timeout")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, errcode.ErrInvalid, "invalid "+name)
		return 0, false
	}
	return id, true
}

// parseLimit returns 0 when the query omits limit so the service applies
// its default.
func parseLimit(c *gin.Context) (int, bool) {
	value := c.Query("limit")
	if value == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit <= 0 {
		response.Error(c, errcode.ErrInvalid, "invalid limit")
		return 0, false
	}
	return limit, true
}
