package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (m *MiddlewareManager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := m.auth.ValidateTokenJWT(c, c.GetHeader("Authorization"))
		if err != nil {
			m.logger.Debug("Authentication error", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("client_id", clientID)

		c.Next()
	}
}
