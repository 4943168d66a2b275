// Package verify implements the tiered access-control gate that decides
// whether a request for owner/repo may proceed, and the 24-hour verification
// cache that short-circuits repeated checks.
//
// Verification runs cheapest-first:
//
//	cached decision → GitHub App installation → .roadmapper file
//
// The cache avoids all I/O. The App installation check is authoritative when
// it hits and avoids a file fetch. The .roadmapper file is the fallback for
// repositories without the App: it must contain a registered API key bound
// to exactly that repository.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rocketstack/roadmapper/internal/githubapi"
	"github.com/rocketstack/roadmapper/internal/githubapp"
	"github.com/rocketstack/roadmapper/internal/keys"
	"github.com/rocketstack/roadmapper/internal/store"
	"github.com/rocketstack/roadmapper/internal/telemetry"
	"github.com/rocketstack/roadmapper/internal/tier"
)

// Denial reasons surfaced verbatim to callers.
const (
	ReasonNoFile       = "No .roadmapper file found in repository"
	ReasonBadFormat    = "Invalid key format in .roadmapper file"
	ReasonUnregistered = "Unregistered API key in .roadmapper file"
	ReasonRepoMismatch = "API key does not match this repository"
	ReasonUnconfirmed  = "Email not yet confirmed. Please check your inbox and click the confirmation link."
)

// Decision is the outcome of VerifyRepo. Reason is set only on denial.
type Decision struct {
	Verified bool
	Tier     tier.Tier
	Reason   string
}

func verified(t tier.Tier) Decision { return Decision{Verified: true, Tier: t} }

func denied(reason string) Decision {
	telemetry.VerificationsTotal.WithLabelValues("denied").Inc()
	return Decision{Reason: reason}
}

// Gate orchestrates verification for incoming requests.
type Gate struct {
	store    store.Store
	keys     *keys.Service
	resolver *githubapp.TokenResolver
	api      *githubapi.Client
	now      func() time.Time
}

// NewGate wires the gate to its collaborators.
func NewGate(s store.Store, ks *keys.Service, resolver *githubapp.TokenResolver, api *githubapi.Client) *Gate {
	return &Gate{store: s, keys: ks, resolver: resolver, api: api, now: time.Now}
}

func cacheKey(owner, repo string) string  { return "repo:" + owner + "/" + repo }
func ttlMarker(owner, repo string) string { return "repo-ttl:" + owner + "/" + repo }

// CachedVerification returns the cached tier for owner/repo, or "" when no
// cached decision exists. The tier hash and the TTL marker are separate keys:
// the marker expires after 24h while the hash lingers, so a stale entry still
// reveals the last known tier to the admin tooling without being trusted.
func (g *Gate) CachedVerification(ctx context.Context, owner, repo string) (tier.Tier, bool, error) {
	fields, err := g.store.HGetAll(ctx, cacheKey(owner, repo))
	if err != nil {
		return "", false, err
	}
	if fields["tier"] == "" {
		return "", false, nil
	}
	return tier.Parse(fields["tier"]), true, nil
}

func (g *Gate) verificationStale(ctx context.Context, owner, repo string) bool {
	_, err := g.store.Get(ctx, ttlMarker(owner, repo))
	return err != nil // missing marker (or store error) means do not trust the cache
}

// CacheVerification records a positive decision for 24 hours.
func (g *Gate) CacheVerification(ctx context.Context, owner, repo string, t tier.Tier) error {
	if err := g.store.HSet(ctx, cacheKey(owner, repo), map[string]string{
		"tier":       string(t),
		"verifiedAt": g.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	return g.store.Set(ctx, ttlMarker(owner, repo), "1", tier.VerificationTTL)
}

// InvalidateVerification drops the cached decision for owner/repo, forcing a
// full re-verification on the next request. Used after tier changes.
func (g *Gate) InvalidateVerification(ctx context.Context, owner, repo string) error {
	return g.store.Del(ctx, cacheKey(owner, repo), ttlMarker(owner, repo))
}

// VerifyRepo decides whether owner/repo may be served and at which tier.
// Store or GitHub failures degrade to a denial, never an error that would
// crash the request path.
func (g *Gate) VerifyRepo(ctx context.Context, owner, repo string) Decision {
	// 1. Cached decision within its 24h window: no network I/O at all.
	if t, ok, err := g.CachedVerification(ctx, owner, repo); err == nil && ok {
		if !g.verificationStale(ctx, owner, repo) {
			telemetry.VerificationsTotal.WithLabelValues("cached").Inc()
			return verified(t)
		}
	} else if err != nil {
		slog.Warn("verification cache read failed", "repo", owner+"/"+repo, "error", err)
	}

	// 2. An installed GitHub App proves ownership without touching repo
	// contents. Installation verification always grants the free tier; paid
	// tiers come from key records.
	if g.resolver.AppConfigured() {
		installed, err := g.resolver.AppInstalled(ctx, owner, repo)
		if err != nil {
			slog.Warn("github app installation check failed", "repo", owner+"/"+repo, "error", err)
		} else if installed {
			if err := g.CacheVerification(ctx, owner, repo, tier.Free); err != nil {
				slog.Warn("verification cache write failed", "repo", owner+"/"+repo, "error", err)
			}
			telemetry.VerificationsTotal.WithLabelValues("app").Inc()
			return verified(tier.Free)
		}
	}

	// 3. Fall back to the .roadmapper proof-of-ownership file.
	token, _ := g.resolver.Resolve(ctx, owner, repo)
	content, err := g.api.FetchRoadmapperFile(ctx, token, owner, repo)
	if err != nil {
		if !errors.Is(err, githubapi.ErrNotFound) {
			slog.Warn("roadmapper file fetch failed", "repo", owner+"/"+repo, "error", err)
		}
		return denied(ReasonNoFile)
	}

	if !keys.ValidFormat(content) {
		return denied(ReasonBadFormat)
	}

	rec, err := g.keys.LookupByHash(ctx, keys.HashKey(content))
	if err != nil {
		slog.Warn("api key lookup failed", "repo", owner+"/"+repo, "error", err)
		return denied(ReasonUnregistered)
	}
	if rec == nil {
		return denied(ReasonUnregistered)
	}
	if rec.Owner != owner || rec.Repo != repo {
		return denied(ReasonRepoMismatch)
	}
	if !rec.EmailConfirmed {
		return denied(ReasonUnconfirmed)
	}

	if err := g.CacheVerification(ctx, owner, repo, rec.Tier); err != nil {
		slog.Warn("verification cache write failed", "repo", owner+"/"+repo, "error", err)
	}
	telemetry.VerificationsTotal.WithLabelValues("file").Inc()
	return verified(rec.Tier)
}
