// Package githubapp implements GitHub App authentication: RS256 App JWTs,
// installation discovery, and installation token exchange, with both lookups
// cached in the backing store. An installed App both proves repository
// ownership (the owner had to approve the installation) and raises the
// GitHub API quota, so the access gate checks it before falling back to the
// .roadmapper file.
package githubapp

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rocketstack/roadmapper/internal/githubapi"
	"github.com/rocketstack/roadmapper/internal/store"
)

// jwtLifetime is the App JWT expiry GitHub mandates (10 minutes max).
const jwtLifetime = 10 * time.Minute

// tokenCacheTTL keeps cached installation tokens 5 minutes under GitHub's
// 60-minute expiry so a token never goes stale mid-request.
const tokenCacheTTL = 55 * time.Minute

// Credentials are the GitHub App's identity. Construction goes through
// LoadCredentials so a nil *Credentials is the single "App not configured"
// signal; no component re-reads the environment to decide.
type Credentials struct {
	AppID         string
	PrivateKey    *rsa.PrivateKey
	WebhookSecret string
}

// LoadCredentials parses the App private key, accepting either raw PEM or
// base64-encoded PEM (common when the key is passed through an env var).
// Returns (nil, nil) when appID or privateKey is empty: the App is simply
// not configured.
func LoadCredentials(appID, privateKey, webhookSecret string) (*Credentials, error) {
	if appID == "" || privateKey == "" {
		return nil, nil
	}

	pemData := privateKey
	if !strings.HasPrefix(pemData, "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(pemData)
		if err != nil {
			return nil, fmt.Errorf("github app private key is neither PEM nor base64: %w", err)
		}
		pemData = string(decoded)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, fmt.Errorf("parse github app private key: %w", err)
	}

	return &Credentials{AppID: appID, PrivateKey: key, WebhookSecret: webhookSecret}, nil
}

// App performs authenticated GitHub App operations for the configured
// credentials.
type App struct {
	creds *Credentials
	store store.Store
	api   *githubapi.Client
	now   func() time.Time
}

// New creates an App client. creds must be non-nil.
func New(creds *Credentials, s store.Store, api *githubapi.Client) *App {
	return &App{creds: creds, store: s, api: api, now: time.Now}
}

func installationKey(owner, repo string) string { return "gh-app:installation:" + owner + "/" + repo }
func tokenKey(installationID string) string     { return "gh-app:token:" + installationID }

// signJWT mints a fresh App JWT: RS256, iss = App ID, issued 60s in the past
// to absorb clock drift between us and GitHub.
func (a *App) signJWT() (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(jwtLifetime).Unix(),
		"iss": a.creds.AppID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.creds.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign github app jwt: %w", err)
	}
	return signed, nil
}

// InstallationID resolves the App installation id for owner/repo. Hits the
// store cache first; the cache has no TTL because an installation id only
// changes when the App is uninstalled, which the webhook handler reacts to
// by deleting the cache entry. Returns "" (no error) when the App is not
// installed on the repo.
func (a *App) InstallationID(ctx context.Context, owner, repo string) (string, error) {
	cached, err := a.store.Get(ctx, installationKey(owner, repo))
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("read installation cache: %w", err)
	}

	appJWT, err := a.signJWT()
	if err != nil {
		return "", err
	}

	id, err := a.api.FindInstallation(ctx, appJWT, owner, repo)
	if errors.Is(err, githubapi.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if err := a.store.Set(ctx, installationKey(owner, repo), id, 0); err != nil {
		return "", fmt.Errorf("cache installation id: %w", err)
	}
	return id, nil
}

// InstallationToken returns an access token for the installation, serving
// from the 55-minute store cache when possible.
func (a *App) InstallationToken(ctx context.Context, installationID string) (string, error) {
	cached, err := a.store.Get(ctx, tokenKey(installationID))
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("read token cache: %w", err)
	}

	appJWT, err := a.signJWT()
	if err != nil {
		return "", err
	}

	token, err := a.api.CreateInstallationToken(ctx, appJWT, installationID)
	if err != nil {
		return "", err
	}

	if err := a.store.Set(ctx, tokenKey(installationID), token, tokenCacheTTL); err != nil {
		return "", fmt.Errorf("cache installation token: %w", err)
	}
	return token, nil
}

// WebhookSecret returns the secret used to sign installation webhooks.
func (a *App) WebhookSecret() string { return a.creds.WebhookSecret }

// RecordInstallation caches an installation id for a repo. Driven by the
// installation webhooks so repos gain App verification without waiting for a
// live lookup.
func (a *App) RecordInstallation(ctx context.Context, owner, repo, installationID string) error {
	return a.store.Set(ctx, installationKey(owner, repo), installationID, 0)
}

// ForgetInstallation drops the cached installation id for a repo.
func (a *App) ForgetInstallation(ctx context.Context, owner, repo string) error {
	return a.store.Del(ctx, installationKey(owner, repo))
}

// ForgetInstallationToken drops the cached token for an uninstalled
// installation.
func (a *App) ForgetInstallationToken(ctx context.Context, installationID string) error {
	return a.store.Del(ctx, tokenKey(installationID))
}

// TokenForRepo returns an installation token scoped to owner/repo, or ""
// when the App is not installed there.
func (a *App) TokenForRepo(ctx context.Context, owner, repo string) (string, error) {
	id, err := a.InstallationID(ctx, owner, repo)
	if err != nil || id == "" {
		return "", err
	}
	return a.InstallationToken(ctx, id)
}
