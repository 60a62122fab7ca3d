package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/tracing"
)

// CORS lets browser dashboards on origins read the demo endpoints and the
// trace id header. No origins allows every origin.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Origin", "Cache-Control"},
		ExposeHeaders: []string{tracing.TraceHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}
