package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vendmart/server/internal/apperrors"
	"github.com/vendmart/server/internal/models"
	"github.com/vendmart/server/internal/service"
)

// AuthMiddleware returns a Gin middleware for authentication. The token may
// arrive as "Authorization: Bearer <token>" or in the legacy "Auth" header.
func AuthMiddleware(svc service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Errors: []string{apperrors.CodeMissingToken},
			})
			c.Abort()
			return
		}

		userID, err := svc.ResolveToken(c.Request.Context(), tokenString)
		if err != nil {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Errors: []string{apperrors.CodeInvalidToken},
			})
			c.Abort()
			return
		}

		// Set user ID in the context
		c.Set("userId", userID)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Auth"); auth != "" {
		return auth
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
