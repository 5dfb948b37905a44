package jwttoken

import (
	"github.com/google/uuid"

	"emissions/internal/platform/middleware"
	"emissions/internal/user/models"
	dErrors "emissions/pkg/domain-errors"
)

// MiddlewareValidator lets RequireAuth validate tokens without importing jwt.
// A correctly signed token is still refused when its subject is not a user
// ID or its role is not one this service issues.
type MiddlewareValidator struct {
	service *JWTService
}

func NewMiddlewareValidator(service *JWTService) *MiddlewareValidator {
	return &MiddlewareValidator{service: service}
}

func (v *MiddlewareValidator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.UserID); err != nil || claims.Subject != claims.UserID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}
	return &middleware.JWTClaims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     string(role),
	}, nil
}
