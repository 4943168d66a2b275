package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/rocketstack/roadmapper/internal/keys"
)

// emailPattern is a sanity check, not RFC 5322: anything with one @ and a dot
// in the domain part passes. The confirmation email is the real validator.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	msgSaveKey = "Save this key. It will not be shown again. Add it to a .roadmapper file in the root of your repository."
	msgPending = "Check your email to confirm your registration. Your key will activate after confirmation. The confirmation link expires in 24 hours."
)

type registerRequest struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Email string `json:"email"`
}

// register issues a new API key for an owner/repo pair. When SMTP is
// configured the registration is created pending and a confirmation link is
// emailed; otherwise the key is active immediately.
func (h *Handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if req.Owner == "" || req.Repo == "" || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: owner, repo, email"})
		return
	}
	if !emailPattern.MatchString(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}

	ctx := c.Request.Context()

	exists, err := h.keys.ExistsForRepo(ctx, req.Owner, req.Repo)
	if err != nil {
		slog.Error("registration lookup failed", "repo", req.Owner+"/"+req.Repo, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing registration"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("A key already exists for %s/%s", req.Owner, req.Repo)})
		return
	}

	found, err := h.github.RepoExists(ctx, h.cfg.GitHub.Token, req.Owner, req.Repo)
	if err != nil {
		slog.Error("repository verification failed", "repo", req.Owner+"/"+req.Repo, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify repository on GitHub"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Repository %s/%s not found on GitHub", req.Owner, req.Repo)})
		return
	}

	key, err := keys.GenerateKey()
	if err != nil {
		slog.Error("key generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate API key"})
		return
	}

	pending := h.email.IsConfigured()
	reg := keys.Registration{Owner: req.Owner, Repo: req.Repo, Email: req.Email}

	hash, err := h.keys.Store(ctx, key, reg, pending)
	if errors.Is(err, keys.ErrRepoAlreadyRegistered) {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("A key already exists for %s/%s", req.Owner, req.Repo)})
		return
	}
	if err != nil {
		slog.Error("key store failed", "repo", req.Owner+"/"+req.Repo, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store API key"})
		return
	}

	if !pending {
		c.JSON(http.StatusCreated, gin.H{
			"key":     key,
			"owner":   req.Owner,
			"repo":    req.Repo,
			"tier":    "free",
			"message": msgSaveKey,
		})
		return
	}

	token, err := keys.NewConfirmToken()
	if err != nil {
		slog.Error("confirm token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create confirmation token"})
		return
	}
	if err := h.keys.StoreConfirmToken(ctx, token, hash, key); err != nil {
		slog.Error("confirm token store failed", "repo", req.Owner+"/"+req.Repo, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create confirmation token"})
		return
	}

	confirmURL := h.cfg.Server.GetPublicURL() + "/api/confirm?token=" + token
	if err := h.email.SendConfirmation(req.Email, confirmURL, req.Owner, req.Repo); err != nil {
		slog.Error("confirmation email failed", "repo", req.Owner+"/"+req.Repo, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send confirmation email. Please try again."})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":                 key,
		"owner":               req.Owner,
		"repo":                req.Repo,
		"tier":                "free",
		"pendingConfirmation": true,
		"message":             msgPending,
	})
}

// confirm resolves a confirmation token and redirects to the landing page,
// which surfaces the outcome from the query parameters.
func (h *Handlers) confirm(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		redirectWithConfirmError(c, "No confirmation token provided")
		return
	}

	conf, err := h.keys.ConfirmRegistration(c.Request.Context(), token)
	if errors.Is(err, keys.ErrInvalidToken) {
		redirectWithConfirmError(c, "Invalid or expired confirmation token")
		return
	}
	if err != nil {
		slog.Error("confirmation failed", "error", err)
		redirectWithConfirmError(c, "Confirmation failed. Please try again.")
		return
	}

	q := url.Values{
		"confirmed": {"true"},
		"owner":     {conf.Owner},
		"repo":      {conf.Repo},
		"key":       {conf.Key},
	}
	c.Redirect(http.StatusFound, "/?"+q.Encode())
}

func redirectWithConfirmError(c *gin.Context, reason string) {
	c.Redirect(http.StatusFound, "/?confirm_error="+url.QueryEscape(reason))
}
