package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rocketstack/roadmapper/internal/config"
	"github.com/rocketstack/roadmapper/internal/email"
	"github.com/rocketstack/roadmapper/internal/githubapi"
	"github.com/rocketstack/roadmapper/internal/githubapp"
	"github.com/rocketstack/roadmapper/internal/issuecache"
	"github.com/rocketstack/roadmapper/internal/keys"
	"github.com/rocketstack/roadmapper/internal/ratelimit"
	"github.com/rocketstack/roadmapper/internal/store"
	"github.com/rocketstack/roadmapper/internal/tier"
	"github.com/rocketstack/roadmapper/internal/verify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testWebhookSecret = "hook-secret"

// testEnv assembles a full router over the in-memory store and a fake GitHub
// API. A nil github handler means every GitHub call answers 404.
type testEnv struct {
	router   *gin.Engine
	store    *store.Memory
	keys     *keys.Service
	verifier *verify.Gate
}

func newTestEnv(t *testing.T, github http.Handler) *testEnv {
	t.Helper()

	if github == nil {
		github = http.NotFoundHandler()
	}
	gh := httptest.NewServer(github)
	t.Cleanup(gh.Close)

	mem := store.NewMemory()
	api := githubapi.NewClient(gh.URL)
	ks := keys.NewService(mem)
	resolver := githubapp.NewTokenResolver(nil, "")
	verifier := verify.NewGate(mem, ks, resolver, api)
	app := githubapp.New(&githubapp.Credentials{AppID: "1", WebhookSecret: testWebhookSecret}, mem, api)

	cfg := &config.Config{}
	cfg.Server.BaseURL = "http://localhost:8080"

	router := NewRouter(Deps{
		Cfg:      cfg,
		Keys:     ks,
		Verifier: verifier,
		Limiter:  ratelimit.NewMemory(),
		Cache:    issuecache.New(mem, api, resolver),
		GitHub:   api,
		App:      app,
		Email:    email.NewSender(cfg.Email),
	})

	return &testEnv{router: router, store: mem, keys: ks, verifier: verifier}
}

func (env *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Ungated routes
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz body = %q", w.Body.String())
	}
}

func TestLandingPage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Roadmapper", "/api/register", ".roadmapper"} {
		if !strings.Contains(body, want) {
			t.Errorf("landing page missing %q", want)
		}
	}
}

func TestShortURLsRedirectToDefaultColors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		path string
		want string
	}{
		{"/view/octocat/hello", "/view/octocat/hello/ffffff/24292f"},
		{"/embed/octocat/hello", "/embed/octocat/hello/ffffff/24292f"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil, nil)
			if w.Code != http.StatusMovedPermanently {
				t.Fatalf("GET %s = %d, want 301", tt.path, w.Code)
			}
			if got := w.Header().Get("Location"); got != tt.want {
				t.Errorf("Location = %q, want %q", got, tt.want)
			}
		})
	}
}

// seedVerification marks octocat/hello as verified so gated routes pass.
func seedVerification(t *testing.T, env *testEnv) {
	t.Helper()
	if err := env.verifier.CacheVerification(context.Background(), "octocat", "hello", tier.Free); err != nil {
		t.Fatalf("seed verification: %v", err)
	}
}
