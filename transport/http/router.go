package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/axiom/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures the router
type Options struct {
	Logger        *zap.Logger
	SecureCookies bool

	// Auth routes are limited per client IP. Zero RateLimit disables it.
	RateLimit float64
	RateBurst int

	// Registry receives the HTTP metrics and is served on /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

// Services bundles what the router serves
type Services struct {
	Auth        *service.AuthService
	Grants      *service.GrantService
	Enrollments *service.EnrollmentService
}

// SetupRouter sets up the Gin router
func SetupRouter(svc Services, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics := NewMetrics(registry)

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log), metrics.Middleware())

	gate := NewGate(svc.Auth, log, metrics)
	handlers := NewAuthHandlers(svc.Auth, gate, log, metrics, opts.SecureCookies)
	records := NewRecordHandlers(svc.Grants, svc.Enrollments, gate, log)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// SIWE routes
	auth := router.Group("/api/auth/siwe")
	if opts.RateLimit > 0 {
		auth.Use(NewRateLimiter(opts.RateLimit, opts.RateBurst).Middleware())
	}
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/verify", handlers.Verify)
		auth.GET("/session", handlers.Session)
		auth.POST("/logout", handlers.Logout)
	}

	// Wallet-owned resources
	api := router.Group("/api")
	{
		api.GET("/governance/grants", records.ListGrants)
		api.POST("/governance/grants", records.CreateGrant)
		api.POST("/keygrow/enrollments", gate.RequireAddressMatch("tenantAddress"), records.CreateEnrollment)
		api.GET("/keygrow/enrollments", gate.RequireSession(), records.ListEnrollments)
	}

	return router
}
