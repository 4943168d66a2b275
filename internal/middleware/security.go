// security.go provides Gin middleware that injects protective HTTP response
// headers. Roadmap images are fetched by GitHub's camo proxy and the view
// pages are meant to be linked directly, so the defaults here are looser than
// a typical API service: embeds must remain frameable and images must be
// loadable cross-origin.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig holds configuration for security headers.
type SecurityHeadersConfig struct {
	// EnableHSTS enables HTTP Strict Transport Security.
	EnableHSTS bool
	// HSTSMaxAge is the max-age value for HSTS in seconds.
	HSTSMaxAge int
	// FrameOptionsValue is the value for X-Frame-Options (DENY, SAMEORIGIN).
	// Empty omits the header, which the embed endpoint requires.
	FrameOptionsValue string
	// ReferrerPolicy is the Referrer-Policy header value.
	ReferrerPolicy string
	// CrossOriginResourcePolicy controls who may load responses as subresources.
	// Images served to camo need "cross-origin".
	CrossOriginResourcePolicy string
}

// PageSecurityHeadersConfig returns defaults for the HTML view pages.
func PageSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:                true,
		HSTSMaxAge:                31536000,
		FrameOptionsValue:         "SAMEORIGIN",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginResourcePolicy: "same-origin",
	}
}

// ImageSecurityHeadersConfig returns defaults for the SVG and embed endpoints,
// which must be loadable from arbitrary origins (README badges, iframes).
func ImageSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:                true,
		HSTSMaxAge:                31536000,
		FrameOptionsValue:         "",
		ReferrerPolicy:            "no-referrer",
		CrossOriginResourcePolicy: "cross-origin",
	}
}

// SecurityHeadersMiddleware adds security headers to all responses.
func SecurityHeadersMiddleware(config SecurityHeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.EnableHSTS {
			c.Header("Strict-Transport-Security", "max-age="+strconv.Itoa(config.HSTSMaxAge))
		}
		if config.FrameOptionsValue != "" {
			c.Header("X-Frame-Options", config.FrameOptionsValue)
		}
		if config.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", config.ReferrerPolicy)
		}
		if config.CrossOriginResourcePolicy != "" {
			c.Header("Cross-Origin-Resource-Policy", config.CrossOriginResourcePolicy)
		}
		c.Header("X-Content-Type-Options", "nosniff")

		c.Next()
	}
}
