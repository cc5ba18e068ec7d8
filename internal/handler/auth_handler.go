package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errcode"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/response"
)

type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		response.Error(c, errcode.ErrInvalid, "username and password are required")
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token})
}
