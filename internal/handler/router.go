package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/middleware"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/jwt"
)

type RouterDeps struct {
	Recommendations *RecommendationHandler
	Status          *StatusHandler
	Admin           *AdminHandler
	Auth            *AuthHandler
	JWTSecret       []byte
	// RetrainWindow is the minimum gap between two retrain calls of one
	// client. Zero disables the limit.
	RetrainWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Status.Health)
	api.GET("/metrics", deps.Status.Metrics)
	api.GET("/models", deps.Status.Models)
	api.GET("/internal/prometheus", gin.WrapH(promhttp.Handler()))

	api.GET("/recommendations/:customer_id", deps.Recommendations.Recommend)
	api.GET("/similar-customers/:customer_id", deps.Recommendations.SimilarCustomers)
	api.GET("/similar-products/:product_id", deps.Recommendations.SimilarProducts)

	api.POST("/auth/token", deps.Auth.Token)

	adminGroup := api.Group("")
	adminGroup.Use(middleware.JWTAuth(deps.JWTSecret), middleware.RequireRole(jwt.RoleAdmin))
	adminGroup.POST("/retrain", middleware.RateLimit(deps.RetrainWindow), deps.Admin.Retrain)
	adminGroup.GET("/weights", deps.Admin.GetWeights)
	adminGroup.PUT("/weights", deps.Admin.SetWeights)
	adminGroup.POST("/cache/invalidate/:customer_id", deps.Admin.InvalidateCustomer)
	adminGroup.POST("/cache/invalidate_all", deps.Admin.InvalidateAll)
	adminGroup.POST("/customers/:customer_id/profile", deps.Admin.RefreshProfile)
}
