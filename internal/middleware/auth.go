package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nailerHeum/AjouNICE/internal/service"
)

// Auth resolves the Authorization header into an identity on the request
// context. Missing or non-bearer headers leave the request anonymous; a
// bearer token that fails verification is rejected before any operation
// runs, with a GraphQL-shaped error body.
func Auth(auth service.AuthService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.ResolveIdentity(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			logger.Debug("rejected bearer token", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"errors": []gin.H{{
					"message":    err.Error(),
					"extensions": gin.H{"code": "UNAUTHENTICATED"},
				}},
				"data": nil,
			})
			return
		}
		if identity != nil {
			c.Request = c.Request.WithContext(service.WithIdentity(c.Request.Context(), identity))
		}
		c.Next()
	}
}
