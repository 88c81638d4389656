package middleware

import (
	"errors"
	"strings"

	"github.com/Brownbull/gabeda-backend/internal/access"
	"github.com/Brownbull/gabeda-backend/internal/auth/jwt"
	"github.com/Brownbull/gabeda-backend/internal/common/dto"
	"github.com/Brownbull/gabeda-backend/internal/common/errorx"

	"github.com/gin-gonic/gin"
)

const (
	claimsKey = "claims"
	viewerKey = "viewer"
)

// JWTAuthMiddleware validates the bearer token and stores the viewer in the context
func JWTAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" || strings.Contains(token, " ") {
			abort(c, errorx.ErrUnauthorized)
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				abort(c, errorx.ErrTokenExpired)
				return
			}
			abort(c, errorx.ErrUnauthorized)
			return
		}

		c.Set(claimsKey, claims)
		c.Set(viewerKey, dto.UserInfo{
			ID:       claims.UserID,
			Username: claims.Username,
			Elevated: claims.Elevated,
		})
		c.Next()
	}
}

// Viewer returns the authenticated viewer set by JWTAuthMiddleware
func Viewer(c *gin.Context) (access.Viewer, bool) {
	v, ok := c.Get(viewerKey)
	if !ok {
		return access.Viewer{}, false
	}
	info, ok := v.(dto.UserInfo)
	if !ok {
		return access.Viewer{}, false
	}
	return access.Viewer{UserID: info.ID, Username: info.Username, Elevated: info.Elevated}, true
}

func abort(c *gin.Context, e *errorx.APIError) {
	c.AbortWithStatusJSON(e.HTTPStatus, gin.H{"error": e})
}
