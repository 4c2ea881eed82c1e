// Package httpapi exposes the thin HTTP surface the Scheduler console uses
// to check on monitoring stations: a health check, the admitted-station
// listing/admin actions, and the Event Bus metrics snapshot. Track and
// royalty reporting data itself is read straight from the persistent
// store by whatever downstream reporting job needs it (spec.md §1 names
// that reporting surface out of scope for this service).
package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/backend/internal/httpmiddleware"
	"github.com/zfogg/sidechain/backend/internal/kernel"
	"github.com/zfogg/sidechain/backend/internal/logger"
	"go.uber.org/zap"
)

// New builds the Gin engine serving the monitor's control surface. The
// WebSocket upgrade endpoints are deliberately NOT registered here — they
// bypass Gin entirely (see cmd/server's raw http.Handler wrapper) because
// Gin's ResponseWriter interferes with connection hijacking.
func New(k *kernel.Kernel) *gin.Engine {
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	if allowed := os.Getenv("ALLOWED_ORIGINS"); allowed != "" {
		origins := strings.FieldsFunc(allowed, func(c rune) bool { return c == ',' })
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsConfig.MaxAge = 86400
	r.Use(cors.New(corsConfig))

	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.GinLogger())
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))

	r.GET("/healthz", handleHealthz(k))

	h := newStationHandlers(k)
	api := r.Group("/api/v1")
	{
		stations := api.Group("/stations")
		stations.GET("", h.list)
		stations.GET("/:id", h.get)
		stations.POST("/:id/stop", h.stop)

		api.GET("/ws/metrics", h.wsMetrics)
	}

	return r
}

func handleHealthz(k *kernel.Kernel) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{}

		if db := k.DB(); db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
				checks["database"] = "down"
				status = http.StatusServiceUnavailable
			} else {
				checks["database"] = "up"
			}
		}

		if cache := k.Cache(); cache != nil {
			if err := cache.Ping(c.Request.Context()); err != nil {
				checks["redis"] = "down"
				logger.Log.Warn("redis healthz check failed", zap.Error(err))
			} else {
				checks["redis"] = "up"
			}
		}

		c.JSON(status, gin.H{
			"status":    status == http.StatusOK,
			"timestamp": time.Now().UTC(),
			"checks":    checks,
			"stations":  k.Scheduler().ActiveStationCount(),
		})
	}
}
