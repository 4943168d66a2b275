// Package githubapi is a minimal GitHub REST API v3 client covering exactly
// the calls the roadmap service makes: repository existence, the .roadmapper
// contents lookup, issue listing with ETag revalidation, and the GitHub App
// installation endpoints. Requests carry whatever bearer token the caller
// resolved; an empty token means an unauthenticated call subject to GitHub's
// lower anonymous rate limit.
package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rocketstack/roadmapper/internal/telemetry"
)

func record(op, result string) {
	telemetry.GitHubRequestsTotal.WithLabelValues(op, result).Inc()
}

const defaultAPIURL = "https://api.github.com"

// issuesPerPage caps the issue listing at a single page of 100. Repositories
// with more than 100 open issues have the remainder silently dropped from the
// roadmap; this matches longstanding behaviour and is deliberate until a
// pagination decision is made.
const issuesPerPage = 100

var (
	// ErrNotFound maps a 404 from GitHub (missing repo, file, or installation).
	ErrNotFound = errors.New("githubapi: not found")

	// ErrUpstream covers transport failures and non-2xx responses other than
	// 404/304; callers treat it as a recoverable per-request failure.
	ErrUpstream = errors.New("githubapi: upstream failure")
)

// Issue is the subset of a GitHub issue the layout engine consumes.
type Issue struct {
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	HTMLURL string  `json:"html_url"`
	Labels  []Label `json:"labels"`
}

// Label is an issue label with its display color (hex, no leading '#').
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// IssuesResult is the outcome of ListIssues. When NotModified is true the
// server answered 304 and Issues/ETag are unset; the caller's cached copy is
// still current.
type IssuesResult struct {
	Issues      []Issue
	ETag        string
	NotModified bool
}

// Client talks to the GitHub REST API.
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient creates a client against api.github.com. A non-empty apiURL
// overrides the endpoint, which tests use to point at a local server.
func NewClient(apiURL string) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("github: create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// RepoExists reports whether owner/repo exists (and is visible to the token).
func (c *Client) RepoExists(ctx context.Context, token, owner, repo string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", owner, repo), token)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		record("repo", "error")
		return false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		record("repo", "ok")
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		record("repo", "ok")
		return true, nil
	default:
		record("repo", "error")
		return false, fmt.Errorf("%w: GET /repos returned %d", ErrUpstream, resp.StatusCode)
	}
}

// FetchRoadmapperFile fetches and decodes the .roadmapper file at the repo
// root via the Contents API. The file is plain text holding only the API key;
// the decoded content is returned trimmed. ErrNotFound when the file or repo
// is missing.
func (c *Client) FetchRoadmapperFile(ctx context.Context, token, owner, repo string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/contents/.roadmapper", owner, repo), token)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		record("contents", "error")
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		record("contents", "ok")
		return "", ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		record("contents", "error")
		return "", fmt.Errorf("%w: contents API returned %d", ErrUpstream, resp.StatusCode)
	}
	record("contents", "ok")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("github: decode contents response: %w", err)
	}
	if payload.Content == "" {
		return "", ErrNotFound
	}

	// GitHub returns file content base64-encoded with embedded newlines.
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("github: decode file content: %w", err)
	}
	return strings.TrimSpace(string(decoded)), nil
}

// ListIssues fetches open issues for owner/repo, one page of 100. A non-empty
// etag is sent as If-None-Match; a 304 answer is reported via NotModified
// instead of an error so the caller can renew its cache without a payload.
func (c *Client) ListIssues(ctx context.Context, token, owner, repo, etag string) (*IssuesResult, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues?per_page=%d", owner, repo, issuesPerPage)
	req, err := c.newRequest(ctx, http.MethodGet, path, token)
	if err != nil {
		return nil, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		record("issues", "not_modified")
		return &IssuesResult{NotModified: true}, nil
	case resp.StatusCode == http.StatusNotFound:
		record("issues", "ok")
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		record("issues", "error")
		return nil, fmt.Errorf("%w: issues API returned %d", ErrUpstream, resp.StatusCode)
	}
	record("issues", "ok")

	var issues []Issue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return nil, fmt.Errorf("github: decode issues response: %w", err)
	}
	return &IssuesResult{Issues: issues, ETag: resp.Header.Get("ETag")}, nil
}

// FindInstallation returns the GitHub App installation id for owner/repo,
// authenticated with an App JWT. ErrNotFound when the App is not installed
// on the repo.
func (c *Client) FindInstallation(ctx context.Context, appJWT, owner, repo string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/installation", owner, repo), appJWT)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		record("installation", "error")
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		record("installation", "ok")
		return "", ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		record("installation", "error")
		return "", fmt.Errorf("%w: installation lookup returned %d", ErrUpstream, resp.StatusCode)
	}
	record("installation", "ok")

	var payload struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("github: decode installation response: %w", err)
	}
	return strconv.FormatInt(payload.ID, 10), nil
}

// CreateInstallationToken exchanges an App JWT for a short-lived installation
// access token (GitHub expires them after 60 minutes).
func (c *Client) CreateInstallationToken(ctx context.Context, appJWT, installationID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/app/installations/%s/access_tokens", installationID), appJWT)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: token exchange returned %d: %s", ErrUpstream, resp.StatusCode, body)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("github: decode token response: %w", err)
	}
	return payload.Token, nil
}
