package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader propagates the request identifier to and from callers.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request ID, read by the
	// request logger in internal/api.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware tags every request with an identifier. An inbound
// X-Request-ID (from a proxy or CDN in front of the service) is reused so the
// ID stays stable across hops; otherwise a UUID v4 is generated. The ID is
// stored in the gin context and echoed in the response header, which is how a
// roadmap consumer reporting a broken image gets correlated with the
// structured log line for their request.
//
// Register it before the logger so every log record carries the ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
