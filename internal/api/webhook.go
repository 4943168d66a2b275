package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps how much of a webhook payload is read. Installation
// events listing every repository of a large org stay well under this.
const maxWebhookBody = 1 << 20

type webhookRepository struct {
	FullName string `json:"full_name"`
}

type webhookPayload struct {
	Action       string `json:"action"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Repositories        []webhookRepository `json:"repositories"`
	RepositoriesAdded   []webhookRepository `json:"repositories_added"`
	RepositoriesRemoved []webhookRepository `json:"repositories_removed"`
}

// webhook processes GitHub App installation events, keeping the per-repo
// installation cache in sync so App-verified repos gain and lose access
// without waiting for a live lookup. Authentication is the HMAC-SHA256
// signature GitHub computes over the raw body.
func (h *Handlers) webhook(c *gin.Context) {
	if h.app == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "GitHub App not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if !validSignature(body, c.GetHeader("X-Hub-Signature-256"), h.app.WebhookSecret()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	ctx := c.Request.Context()
	installationID := strconv.FormatInt(payload.Installation.ID, 10)

	switch c.GetHeader("X-GitHub-Event") {
	case "installation":
		switch payload.Action {
		case "created":
			h.recordRepos(ctx, installationID, payload.Repositories)
		case "deleted":
			h.forgetRepos(ctx, installationID, payload.Repositories)
		}
	case "installation_repositories":
		switch payload.Action {
		case "added":
			h.recordRepos(ctx, installationID, payload.RepositoriesAdded)
		case "removed":
			h.forgetRepos(ctx, installationID, payload.RepositoriesRemoved)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// recordRepos caches the installation id for each repository named in the
// event. Store failures are logged and skipped: a later verification falls
// back to a live installation lookup.
func (h *Handlers) recordRepos(ctx context.Context, installationID string, repos []webhookRepository) {
	for _, r := range repos {
		owner, repo, ok := splitFullName(r.FullName)
		if !ok {
			continue
		}
		if err := h.app.RecordInstallation(ctx, owner, repo, installationID); err != nil {
			slog.Warn("installation cache write failed", "repo", r.FullName, "error", err)
		}
	}
}

// forgetRepos drops the cached installation id for each repository, then the
// cached token for the installation itself.
func (h *Handlers) forgetRepos(ctx context.Context, installationID string, repos []webhookRepository) {
	for _, r := range repos {
		owner, repo, ok := splitFullName(r.FullName)
		if !ok {
			continue
		}
		if err := h.app.ForgetInstallation(ctx, owner, repo); err != nil {
			slog.Warn("installation cache delete failed", "repo", r.FullName, "error", err)
		}
	}
	if err := h.app.ForgetInstallationToken(ctx, installationID); err != nil {
		slog.Warn("installation token delete failed", "installation", installationID, "error", err)
	}
}

// validSignature checks the X-Hub-Signature-256 header against the expected
// HMAC-SHA256 of the raw body, in constant time.
func validSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func splitFullName(fullName string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(fullName, "/")
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, ok
}
