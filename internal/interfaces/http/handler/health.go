package handler

import (
	"net/http"
	"time"

	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping() error
}

// Health answers 200 while the database responds and 503 otherwise
func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().Format(time.RFC3339)
		if err := db.Ping(); err != nil {
			logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     now,
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     now,
			"database": "ok",
		})
	}
}
