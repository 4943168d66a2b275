package githubapp

import "context"

// TokenSource identifies which credential a resolved token came from.
type TokenSource string

const (
	// SourceApp is a per-repo installation token (5000 req/h per installation).
	SourceApp TokenSource = "app"
	// SourcePAT is the shared personal access token (5000 req/h shared).
	SourcePAT TokenSource = "pat"
	// SourceNone means unauthenticated (60 req/h per IP at GitHub's side).
	SourceNone TokenSource = "none"
)

// TokenResolver picks the best available GitHub credential for a repo:
// App installation token, then the shared PAT, then anonymous.
type TokenResolver struct {
	app *App // nil when the GitHub App is not configured
	pat string
}

// NewTokenResolver builds a resolver. app may be nil; pat may be empty.
func NewTokenResolver(app *App, pat string) *TokenResolver {
	return &TokenResolver{app: app, pat: pat}
}

// AppConfigured reports whether GitHub App credentials are present.
func (r *TokenResolver) AppConfigured() bool {
	return r.app != nil
}

// AppInstalled reports whether the configured App is installed on owner/repo.
// Always false when the App is not configured.
func (r *TokenResolver) AppInstalled(ctx context.Context, owner, repo string) (bool, error) {
	if r.app == nil {
		return false, nil
	}
	id, err := r.app.InstallationID(ctx, owner, repo)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

// Resolve returns the strongest credential available for owner/repo. An App
// lookup failure degrades to the next source rather than failing the request:
// a worse rate limit beats no roadmap.
func (r *TokenResolver) Resolve(ctx context.Context, owner, repo string) (string, TokenSource) {
	if r.app != nil {
		if token, err := r.app.TokenForRepo(ctx, owner, repo); err == nil && token != "" {
			return token, SourceApp
		}
	}
	if r.pat != "" {
		return r.pat, SourcePAT
	}
	return "", SourceNone
}
