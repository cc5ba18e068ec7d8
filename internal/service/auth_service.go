package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/jwt"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/password"
)

const AdminSubject = "admin"

// AuthService issues admin tokens for the operational endpoints. There is a
// single admin identity whose bcrypt hash comes from configuration.
type AuthService struct {
	passwordHash string
	jwtSecret    []byte
	jwtTTL       time.Duration
}

func NewAuthService(passwordHash string, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{passwordHash: passwordHash, jwtSecret: secret, jwtTTL: ttl}
}

func (s *AuthService) Login(ctx context.Context, username, plainPassword string) (string, error) {
	if s.passwordHash == "" {
		return "", appErr.ErrForbidden
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(AdminSubject)) != 1 || !password.Matches(s.passwordHash, plainPassword) {
		logutil.GetLogger(ctx).Warn("admin login rejected", zap.String("username", username))
		return "", appErr.ErrUnauthorized
	}
	return jwt.GenerateToken(AdminSubject, jwt.RoleAdmin, s.jwtSecret, s.jwtTTL)
}
