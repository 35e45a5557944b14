package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Pulth-Team/Pulth-sub000/internal/metrics"
)

// Pinger проверяет доступность зависимого сервиса
type Pinger func(ctx context.Context) error

// NewRouter создает HTTP роутер. ping используется в /healthz и может быть nil.
func NewRouter(
	handler *CommentHandler,
	logger *zap.Logger,
	m *metrics.Metrics,
	corsOrigins []string,
	ping Pinger,
) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		LoggingMiddleware(logger),
		MetricsMiddleware(m),
		CORSMiddleware(corsOrigins),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	handler.RegisterRoutes(r)

	return r
}
