// Package issuecache sits between the renderers and the GitHub Issues API.
// Entries are keyed by owner/repo and carry the response ETag, so a stale
// entry can be revalidated with a conditional GET: a 304 renews freshness
// without re-downloading the payload, which is what lets a paid-tier repo
// refresh every 30 seconds without burning quota on full responses.
package issuecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketstack/roadmapper/internal/githubapi"
	"github.com/rocketstack/roadmapper/internal/githubapp"
	"github.com/rocketstack/roadmapper/internal/store"
	"github.com/rocketstack/roadmapper/internal/telemetry"
)

// Entry is a cached issue listing. CachedAt is unix milliseconds; zero means
// "age unknown", which always reads as stale.
type Entry struct {
	Issues   []githubapi.Issue `json:"issues"`
	ETag     string            `json:"etag"`
	CachedAt int64             `json:"cachedAt"`
}

// Cache fetches issues through the store-backed cache.
type Cache struct {
	store    store.Store
	api      *githubapi.Client
	resolver *githubapp.TokenResolver
	now      func() time.Time
}

// New wires the cache to its collaborators.
func New(s store.Store, api *githubapi.Client, resolver *githubapp.TokenResolver) *Cache {
	return &Cache{store: s, api: api, resolver: resolver, now: time.Now}
}

func issuesKey(owner, repo string) string { return "cache:issues:" + owner + "/" + repo }

// Decode normalizes a raw cache value into an Entry. Entries written before
// ETag support are a bare issue array; they are upgraded here, at the
// deserialization boundary, to {issues, etag: "", cachedAt: 0} so nothing
// downstream ever branches on payload shape. cachedAt 0 makes a legacy entry
// permanently stale, forcing one full refetch that rewrites it in the new
// shape.
func Decode(raw []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err == nil {
		return &entry, nil
	}

	var legacy []githubapi.Issue
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("issue cache entry is neither object nor array: %w", err)
	}
	return &Entry{Issues: legacy}, nil
}

// Fresh reports whether the entry's age is strictly below ttl. An age exactly
// equal to ttl is stale.
func Fresh(entry *Entry, ttl time.Duration, now time.Time) bool {
	if entry == nil || entry.CachedAt == 0 {
		return false
	}
	age := now.UnixMilli() - entry.CachedAt
	return age < ttl.Milliseconds()
}

func (c *Cache) load(ctx context.Context, owner, repo string) *Entry {
	raw, err := c.store.Get(ctx, issuesKey(owner, repo))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		slog.Warn("issue cache read failed", "repo", owner+"/"+repo, "error", err)
		return nil
	}

	entry, err := Decode([]byte(raw))
	if err != nil {
		slog.Warn("issue cache entry unreadable, discarding", "repo", owner+"/"+repo, "error", err)
		return nil
	}
	return entry
}

func (c *Cache) save(ctx context.Context, owner, repo string, entry *Entry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("issue cache encode failed", "repo", owner+"/"+repo, "error", err)
		return
	}
	if err := c.store.Set(ctx, issuesKey(owner, repo), string(raw), 0); err != nil {
		slog.Warn("issue cache write failed", "repo", owner+"/"+repo, "error", err)
	}
}

// FetchIssues returns the open issues for owner/repo, honouring the
// tier-dependent ttl:
//
//  1. fresh cache → cached issues, zero GitHub calls
//  2. stale cache with ETag → conditional GET; 304 renews cachedAt and keeps
//     the stored issues and ETag, 200 replaces all three
//  3. no cache, or stale without ETag → unconditional fetch
//
// A GitHub failure with a cache present returns the stale issues rather than
// an error; an out-of-date roadmap beats a broken image.
func (c *Cache) FetchIssues(ctx context.Context, owner, repo string, ttl time.Duration) ([]githubapi.Issue, error) {
	cached := c.load(ctx, owner, repo)
	if Fresh(cached, ttl, c.now()) {
		telemetry.IssueCacheTotal.WithLabelValues("hit").Inc()
		return cached.Issues, nil
	}

	token, _ := c.resolver.Resolve(ctx, owner, repo)

	etag := ""
	if cached != nil {
		etag = cached.ETag
	}

	res, err := c.api.ListIssues(ctx, token, owner, repo, etag)
	if err != nil {
		if cached != nil {
			slog.Warn("issue fetch failed, serving stale cache", "repo", owner+"/"+repo, "error", err)
			telemetry.IssueCacheTotal.WithLabelValues("stale_served").Inc()
			return cached.Issues, nil
		}
		return nil, err
	}

	if res.NotModified {
		// Content unchanged upstream: renew freshness only. Keeping the old
		// ETag means the next revalidation is another cheap 304.
		cached.CachedAt = c.now().UnixMilli()
		c.save(ctx, owner, repo, cached)
		telemetry.IssueCacheTotal.WithLabelValues("revalidated").Inc()
		return cached.Issues, nil
	}

	telemetry.IssueCacheTotal.WithLabelValues("miss").Inc()
	entry := &Entry{Issues: res.Issues, ETag: res.ETag, CachedAt: c.now().UnixMilli()}
	c.save(ctx, owner, repo, entry)
	return entry.Issues, nil
}
