package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Pulth-Team/Pulth-sub000/internal/metrics"
)

// LoggingMiddleware логирует HTTP запросы
func LoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("http request", fields...)
	}
}

// MetricsMiddleware считает запросы и время ответа по шаблону маршрута
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// CORSMiddleware добавляет CORS заголовки. "*" или пустой список разрешает любой origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}

	cfg.AllowAllOrigins = len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			break
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}

	return cors.New(cfg)
}
