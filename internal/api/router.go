// Package api wires together all HTTP routes for the roadmap service.
//
// Route grouping philosophy:
//   - The roadmap-serving routes (/:owner/:repo image, /view/, /embed/, /html/)
//     all sit behind the access gate: IP backstop, repository verification,
//     then the per-repo tiered rate limit.
//   - /api/register gets the IP backstop only; its repository is by definition
//     not yet verified.
//   - /api/confirm and /api/github/webhook bypass the gate entirely: the first
//     is authenticated by its one-time token, the second by its HMAC signature.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rocketstack/roadmapper/internal/config"
	"github.com/rocketstack/roadmapper/internal/email"
	"github.com/rocketstack/roadmapper/internal/githubapi"
	"github.com/rocketstack/roadmapper/internal/githubapp"
	"github.com/rocketstack/roadmapper/internal/issuecache"
	"github.com/rocketstack/roadmapper/internal/keys"
	"github.com/rocketstack/roadmapper/internal/middleware"
	"github.com/rocketstack/roadmapper/internal/ratelimit"
	"github.com/rocketstack/roadmapper/internal/tier"
	"github.com/rocketstack/roadmapper/internal/verify"
)

// Deps collects the services the router dispatches to. App is nil when the
// GitHub App is not configured, which disables the webhook endpoint; Email may
// be unconfigured, which makes registration skip the confirmation step.
type Deps struct {
	Cfg      *config.Config
	Keys     *keys.Service
	Verifier *verify.Gate
	Limiter  *ratelimit.Limiter
	Cache    *issuecache.Cache
	GitHub   *githubapi.Client
	App      *githubapp.App
	Email    *email.Sender
}

// Handlers holds the HTTP handlers over their dependencies.
type Handlers struct {
	cfg    *config.Config
	keys   *keys.Service
	cache  *issuecache.Cache
	github *githubapi.Client
	app    *githubapp.App
	email  *email.Sender
}

// NewRouter creates and configures the Gin router.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())

	h := &Handlers{
		cfg:    deps.Cfg,
		keys:   deps.Keys,
		cache:  deps.Cache,
		github: deps.GitHub,
		app:    deps.App,
		email:  deps.Email,
	}

	gate := middleware.NewGate(deps.Verifier, deps.Limiter)
	gated := gate.Middleware(middleware.GateOptions{})
	ipOnly := gate.Middleware(middleware.GateOptions{IPRateLimitOnly: true})

	pageHeaders := middleware.SecurityHeadersMiddleware(middleware.PageSecurityHeadersConfig())
	imageHeaders := middleware.SecurityHeadersMiddleware(middleware.ImageSecurityHeadersConfig())

	router.GET("/", pageHeaders, h.landingPage)
	router.GET("/healthz", healthzHandler())

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/register", ipOnly, h.register)
		apiGroup.GET("/confirm", h.confirm)
		apiGroup.POST("/github/webhook", h.webhook)
	}

	// Short view/embed URLs redirect to the canonical four-segment form so a
	// single route shape reaches the renderers. The redirect itself is not
	// gated; the target is.
	router.GET("/view/:owner/:repo", redirectWithDefaultColors("view"))
	router.GET("/view/:owner/:repo/:bg/:text", pageHeaders, gated, h.viewPage)
	router.GET("/embed/:owner/:repo", redirectWithDefaultColors("embed"))
	router.GET("/embed/:owner/:repo/:bg/:text", pageHeaders, gated, h.embedPage)
	router.GET("/html/:owner/:repo", pageHeaders, gated, h.htmlPage)
	router.GET("/html/:owner/:repo/:scheme", pageHeaders, gated, h.htmlPage)

	router.GET("/:owner/:repo", imageHeaders, gated, h.roadmapSVG)
	router.GET("/:owner/:repo/:bg", imageHeaders, gated, h.roadmapSVG)
	router.GET("/:owner/:repo/:bg/:text", imageHeaders, gated, h.roadmapSVG)

	return router
}

func redirectWithDefaultColors(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently,
			fmt.Sprintf("/%s/%s/%s/ffffff/24292f", prefix, c.Param("owner"), c.Param("repo")))
	}
}

// cacheTTL returns the issue-cache TTL the gate stored for this request,
// falling back to the free-tier TTL when the gate did not run.
func cacheTTL(c *gin.Context) time.Duration {
	if v, ok := c.Get(middleware.CacheTTLKey); ok {
		if d, ok := v.(time.Duration); ok {
			return d
		}
	}
	return tier.CacheTTL(tier.Free)
}

// healthzHandler reports process liveness. The store is deliberately not
// probed: the service degrades gracefully without it (limiters fail open,
// verification denies), so a store outage should not fail the liveness gate.
func healthzHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// LoggerMiddleware emits one structured log record per request.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", middleware.ClientIP(c)),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
