package middleware

import (
	"net/http"
	"time"

	"automator/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type MiddlewareManager struct {
	auth    *auth.AuthModule
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewMiddlewareManager creates the shared middleware. A non-positive limit disables rate limiting.
func NewMiddlewareManager(auth *auth.AuthModule, limit float64, burst int, logger *zap.Logger) *MiddlewareManager {
	m := &MiddlewareManager{auth: auth, logger: logger.Named("http")}
	if limit > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(limit), max(burst, 1))
	}
	return m
}

// RateLimit rejects requests above the configured rate with 429
func (m *MiddlewareManager) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter != nil && !m.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request
func (m *MiddlewareManager) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
