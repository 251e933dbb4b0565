package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"promptscan-backend/internal/export"
	"promptscan-backend/internal/jobs"
	"promptscan-backend/internal/runs"
	"promptscan-backend/internal/services/health"
	"promptscan-backend/internal/shared/config"
	"promptscan-backend/internal/shared/metrics"
	"promptscan-backend/internal/shared/server/middleware"
	"promptscan-backend/internal/shared/server/respond"
	"promptscan-backend/internal/stream"
)

const startGroup = "START"

// RouterDeps carries the handlers mounted under /api/v1. Nil handlers are
// skipped.
type RouterDeps struct {
	Config  config.Config
	Health  *health.Service
	Runs    *runs.Handler
	Exports *export.Handler
	Jobs    *jobs.Handler
	Stream  *stream.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: startGroupFor,
			Rules: map[string]middleware.RateLimitRule{
				startGroup: {Rate: deps.Config.RateLimitRPS, Burst: deps.Config.RateLimitBurst},
			},
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		st := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})
	api.GET("/metrics", metrics.Handler())

	if deps.Runs != nil {
		deps.Runs.RegisterRoutes(api)
	}
	if deps.Jobs != nil {
		deps.Jobs.RegisterRoutes(api)
	}
	if deps.Exports != nil {
		deps.Exports.RegisterRoutes(api)
	}
	if deps.Stream != nil {
		deps.Stream.RegisterRoutes(api)
	}

	return r
}

// startGroupFor puts every request that starts provider work in one bucket.
func startGroupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return ""
	}
	path := strings.TrimSuffix(c.Request.URL.Path, "/")
	switch path {
	case "/api/v1/sessions", "/api/v1/batches", "/api/v1/batches/jobs":
		return startGroup
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
