// Package tier defines the service levels a registered repository can hold and
// the quotas attached to each. A repository's tier controls two things: how
// long rendered issue data may be served from cache, and how many gated
// requests per hour the repository may receive.
package tier

import "time"

// Tier is a service level for a registered repository.
type Tier string

const (
	// Free is the default tier assigned at registration.
	Free Tier = "free"
	// Paid trades higher GitHub API cost for near-real-time cache refresh.
	Paid Tier = "paid"
)

// VerificationTTL is how long a cached verification decision stays valid.
const VerificationTTL = 24 * time.Hour

// Quota describes the sliding-window rate limit for a tier.
type Quota struct {
	Requests int
	Window   time.Duration
}

// IPQuota is the per-client-IP abuse backstop applied to every request
// regardless of registration status.
var IPQuota = Quota{Requests: 200, Window: time.Hour}

type limits struct {
	cacheTTL time.Duration
	quota    Quota
}

var tierLimits = map[Tier]limits{
	Free: {cacheTTL: 3600 * time.Second, quota: Quota{Requests: 60, Window: time.Hour}},
	Paid: {cacheTTL: 30 * time.Second, quota: Quota{Requests: 10000, Window: time.Hour}},
}

// Parse maps a stored tier string onto a known Tier, defaulting to Free for
// anything unrecognised so that a corrupted record degrades rather than fails.
func Parse(s string) Tier {
	if Tier(s) == Paid {
		return Paid
	}
	return Free
}

// Valid reports whether s names a known tier.
func Valid(s string) bool {
	_, ok := tierLimits[Tier(s)]
	return ok
}

// CacheTTL returns the issue-cache TTL for t. Unknown tiers get the Free TTL.
func CacheTTL(t Tier) time.Duration {
	if l, ok := tierLimits[t]; ok {
		return l.cacheTTL
	}
	return tierLimits[Free].cacheTTL
}

// RateQuota returns the per-repo sliding-window quota for t.
func RateQuota(t Tier) Quota {
	if l, ok := tierLimits[t]; ok {
		return l.quota
	}
	return tierLimits[Free].quota
}
