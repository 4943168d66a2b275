// Package ratelimit enforces the two independent sliding-window limits in
// front of the rendering path: a per-IP abuse backstop applied to every
// request, and a per-repository quota that depends on the repo's tier.
//
// With Redis configured the windows are evaluated by redis_rate (GCRA), so
// counters are shared across instances with no cross-request coordination in
// the application. Without Redis a per-process sliding window stands in.
// Both limiters fail open: if the backing store is unreachable the request
// is allowed; availability of the rendering path wins over enforcement
// during an infra outage.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/rocketstack/roadmapper/internal/tier"
)

// Result mirrors the limiter outcome surfaced as X-RateLimit-* headers.
// Limit/Remaining/Reset are populated on both pass and fail.
type Result struct {
	Success   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter evaluates IP and repo windows. Exactly one of rl/win is set.
type Limiter struct {
	rl  *redis_rate.Limiter
	win *slidingWindow
	now func() time.Time
}

// NewRedis creates a limiter over a shared Redis instance.
func NewRedis(client *redis.Client) *Limiter {
	return &Limiter{rl: redis_rate.NewLimiter(client), now: time.Now}
}

// NewMemory creates a per-process limiter for deployments without Redis.
func NewMemory() *Limiter {
	return &Limiter{win: newSlidingWindow(), now: time.Now}
}

// AllowIP evaluates the global per-client-IP backstop.
func (l *Limiter) AllowIP(ctx context.Context, ip string) Result {
	return l.allow(ctx, "ratelimit:ip:"+ip, tier.IPQuota)
}

// AllowRepo evaluates the per-repo window for the repo's tier. The identifier
// embeds the tier so a tier change starts a fresh window at the new quota.
func (l *Limiter) AllowRepo(ctx context.Context, owner, repo string, t tier.Tier) Result {
	return l.allow(ctx, "ratelimit:"+string(t)+":repo:"+owner+"/"+repo, tier.RateQuota(t))
}

func (l *Limiter) allow(ctx context.Context, key string, q tier.Quota) Result {
	if l.win != nil {
		return l.win.allow(key, q, l.now())
	}

	res, err := l.rl.Allow(ctx, key, redis_rate.Limit{
		Rate:   q.Requests,
		Burst:  q.Requests,
		Period: q.Window,
	})
	if err != nil {
		slog.Warn("rate limit check failed, allowing request", "key", key, "error", err)
		return Result{Success: true, Limit: q.Requests}
	}

	return Result{
		Success:   res.Allowed > 0,
		Limit:     q.Requests,
		Remaining: res.Remaining,
		Reset:     l.now().Add(res.ResetAfter),
	}
}
