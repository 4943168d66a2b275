package middleware

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rocketstack/roadmapper/internal/ratelimit"
	"github.com/rocketstack/roadmapper/internal/telemetry"
	"github.com/rocketstack/roadmapper/internal/tier"
	"github.com/rocketstack/roadmapper/internal/verify"
)

// gin.Context keys set by the gate for downstream handlers.
const (
	// TierKey holds the verified tier.Tier for the request's repository.
	TierKey = "tier"

	// CacheTTLKey holds the issue-cache TTL (time.Duration) for that tier.
	CacheTTLKey = "cache_ttl"
)

const landingURL = "roadmapper.rocketstack.co"

// GateOptions selects which checks a route group gets.
type GateOptions struct {
	// SkipAll bypasses the gate entirely (landing page, health check).
	SkipAll bool

	// IPRateLimitOnly applies the IP backstop but skips verification and the
	// per-repo limit. Registration endpoints use this: their repo is by
	// definition not yet verified.
	IPRateLimitOnly bool
}

// Gate is the request gate: IP backstop, repository verification, then the
// per-repo tiered rate limit. It fronts every roadmap-serving route.
type Gate struct {
	verifier *verify.Gate
	limiter  *ratelimit.Limiter
}

// NewGate builds the gate middleware factory.
func NewGate(verifier *verify.Gate, limiter *ratelimit.Limiter) *Gate {
	return &Gate{verifier: verifier, limiter: limiter}
}

// ClientIP returns the caller's IP. The first entry of X-Forwarded-For wins
// when present, matching what the platform's edge proxy injects; otherwise
// Gin's remote-address logic applies.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return c.ClientIP()
}

// IsImagePath reports whether the request path serves an SVG image rather
// than an HTML page. Error bodies follow the content type of the endpoint so
// a broken badge still renders something legible in a README.
func IsImagePath(path string) bool {
	return !strings.HasPrefix(path, "/view/") &&
		!strings.HasPrefix(path, "/embed/") &&
		!strings.HasPrefix(path, "/html/")
}

// Middleware returns the gate as a Gin handler configured by opts.
func (g *Gate) Middleware(opts GateOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.SkipAll {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		ipRes := g.limiter.AllowIP(ctx, ClientIP(c))
		if !ipRes.Success {
			telemetry.RateLimitedTotal.WithLabelValues("ip").Inc()
			abortWithError(c, http.StatusTooManyRequests,
				"Rate limit exceeded", "Too many requests. Please try again later.")
			return
		}

		if opts.IPRateLimitOnly {
			c.Next()
			return
		}

		owner, repo := c.Param("owner"), c.Param("repo")
		if owner == "" || repo == "" {
			c.Next()
			return
		}

		decision := g.verifier.VerifyRepo(ctx, owner, repo)
		if !decision.Verified {
			abortWithError(c, http.StatusForbidden, "Roadmap not registered", decision.Reason)
			return
		}

		repoRes := g.limiter.AllowRepo(ctx, owner, repo, decision.Tier)
		setRateLimitHeaders(c, repoRes)
		if !repoRes.Success {
			telemetry.RateLimitedTotal.WithLabelValues("repo").Inc()
			abortWithError(c, http.StatusTooManyRequests,
				"Rate limit exceeded", "This roadmap has exceeded its rate limit. Please try again later.")
			return
		}

		c.Set(TierKey, decision.Tier)
		c.Set(CacheTTLKey, tier.CacheTTL(decision.Tier))
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, res ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
}

func abortWithError(c *gin.Context, status int, title, message string) {
	if IsImagePath(c.Request.URL.Path) {
		c.Data(status, "image/svg+xml", []byte(ErrorSVG(title, message)))
	} else {
		c.Data(status, "text/html; charset=utf-8", []byte(ErrorHTML(title, message)))
	}
	c.Abort()
}

// ErrorSVG renders a denial or rate-limit notice as an image, so a README
// badge degrades to a readable banner instead of a broken-image icon.
func ErrorSVG(title, message string) string {
	title, message = html.EscapeString(title), html.EscapeString(message)
	return fmt.Sprintf(`<svg viewBox="0 0 1140 200" xmlns="http://www.w3.org/2000/svg" style="background-color: #fff3cd;">
  <text x="570" y="70" style="font-size: 22px; text-anchor: middle; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; font-weight: 600; fill: #856404;">%s</text>
  <text x="570" y="110" style="font-size: 15px; text-anchor: middle; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; fill: #856404;">%s</text>
  <text x="570" y="150" style="font-size: 14px; text-anchor: middle; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; fill: #856404;">Get started at %s</text>
</svg>`, title, message, landingURL)
}

// ErrorHTML renders the same notice as a standalone page for the view
// endpoints.
func ErrorHTML(title, message string) string {
	title, message = html.EscapeString(title), html.EscapeString(message)
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%s</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; background: #f6f8fa; color: #24292f; }
    .container { text-align: center; max-width: 500px; padding: 40px; }
    h1 { font-size: 24px; margin-bottom: 16px; }
    p { color: #57606a; line-height: 1.6; }
    a { color: #0969da; text-decoration: none; }
    a:hover { text-decoration: underline; }
  </style>
</head>
<body>
  <div class="container">
    <h1>%s</h1>
    <p>%s</p>
    <p><a href="https://%s">Get started at %s</a></p>
  </div>
</body>
</html>`, title, title, message, landingURL, landingURL)
}
