// Package telemetry provides application-level observability for Roadmapper.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<RDM_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format and is intended to be scraped by a Prometheus server every 15–60 seconds.
// It is NOT served by the Gin router, so it never competes with badge traffic.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /:owner/:repo) rather than
// the raw request URL to prevent unbounded label cardinality from user-supplied
// owner and repository names.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Roadmap rendering metrics.
//
// RendersTotal counts every roadmap image or page produced, labelled by output
// format ("svg", "html", "embed", "view"). GitHub's camo proxy hides true
// viewer counts, so this is the closest thing to a usage signal.
//
// Example PromQL queries:
//   - Renders by format:  sum by (format) (rate(roadmap_renders_total[1h]))
var RendersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roadmap_renders_total",
		Help: "Total number of roadmaps rendered, by output format.",
	},
	[]string{"format"},
)

// Access-gate metrics.
//
// VerificationsTotal is labelled by outcome: "cached", "app", "file" for the
// three grant paths, or "denied". A rising denied rate usually means broken
// .roadmapper files in the wild, not abuse.
//
// RateLimitedTotal is labelled by scope ("ip" or "repo"). Sustained ip-scope
// hits point at a scraper; repo-scope hits at a hot README.
var (
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifications_total",
			Help: "Total number of repository access verifications, by outcome.",
		},
		[]string{"outcome"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of requests rejected by a rate limit, by scope.",
		},
		[]string{"scope"},
	)
)

// GitHub upstream metrics.
//
// GitHubRequestsTotal is labelled by operation ("issues", "contents", "repo",
// "installation") and result ("ok", "not_modified", "error"). The not_modified
// share is the ETag cache hit rate against upstream.
//
// IssueCacheTotal is labelled by result ("hit", "revalidated", "miss", "stale_served").
//
// Example PromQL queries:
//   - 304 share:  sum(rate(github_requests_total{result="not_modified"}[1h])) / sum(rate(github_requests_total{operation="issues"}[1h]))
var (
	GitHubRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_requests_total",
			Help: "Total number of GitHub API requests, by operation and result.",
		},
		[]string{"operation", "result"},
	)

	IssueCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issue_cache_total",
			Help: "Issue cache lookups, by result.",
		},
		[]string{"result"},
	)
)

// ConfirmationEmailsSentTotal is a plain Counter incremented once per
// registration confirmation email successfully handed to the SMTP server.
// A stalled counter with ongoing registrations signals SMTP delivery failure.
var ConfirmationEmailsSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "confirmation_emails_sent_total",
		Help: "Total number of registration confirmation emails successfully sent.",
	},
)
