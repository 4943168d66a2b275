// Package main is the entry point for the Roadmapper server binary. It
// dispatches two subcommands (serve and version) via a simple switch on
// os.Args so the binary's full CLI surface is readable in one place without
// requiring a cobra dependency.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rocketstack/roadmapper/internal/api"
	"github.com/rocketstack/roadmapper/internal/config"
	"github.com/rocketstack/roadmapper/internal/email"
	"github.com/rocketstack/roadmapper/internal/githubapi"
	"github.com/rocketstack/roadmapper/internal/githubapp"
	"github.com/rocketstack/roadmapper/internal/issuecache"
	"github.com/rocketstack/roadmapper/internal/keys"
	"github.com/rocketstack/roadmapper/internal/ratelimit"
	"github.com/rocketstack/roadmapper/internal/safego"
	"github.com/rocketstack/roadmapper/internal/store"
	"github.com/rocketstack/roadmapper/internal/telemetry"
	"github.com/rocketstack/roadmapper/internal/verify"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return serve(cfg)
	case "version":
		fmt.Printf("Roadmapper v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Initialise structured logging as early as possible so all subsequent
	// output uses the configured format and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Select the backing store. Redis is the production path: registrations,
	// verification decisions, issue cache, and rate-limit windows are all
	// shared across instances. The in-memory store is for local development.
	var (
		kv      store.Store
		limiter *ratelimit.Limiter
	)
	if cfg.Redis.Configured() {
		redisStore, err := store.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		kv = redisStore
		limiter = ratelimit.NewRedis(redisStore.Client())
		slog.Info("using redis store", "addr", cfg.Redis.Addr)
	} else {
		kv = store.NewMemory()
		limiter = ratelimit.NewMemory()
		slog.Warn("redis not configured, using in-memory store; registrations will not survive restarts")
	}

	gh := githubapi.NewClient("")

	creds, err := githubapp.LoadCredentials(cfg.GitHub.App.AppID, cfg.GitHub.App.PrivateKey, cfg.GitHub.App.WebhookSecret)
	if err != nil {
		return fmt.Errorf("failed to load github app credentials: %w", err)
	}
	var app *githubapp.App
	if creds != nil {
		app = githubapp.New(creds, kv, gh)
		slog.Info("github app configured", "app_id", creds.AppID)
	}
	resolver := githubapp.NewTokenResolver(app, cfg.GitHub.Token)

	keySvc := keys.NewService(kv)
	verifier := verify.NewGate(kv, keySvc, resolver, gh)
	cache := issuecache.New(kv, gh, resolver)
	sender := email.NewSender(cfg.Email)
	if !sender.IsConfigured() {
		slog.Warn("smtp not configured, registrations activate without email confirmation")
	}

	if cfg.Telemetry.Metrics.Enabled {
		startMetricsServer(cfg.Telemetry.Metrics.PrometheusPort)
	}

	router := api.NewRouter(api.Deps{
		Cfg:      cfg,
		Keys:     keySvc,
		Verifier: verifier,
		Limiter:  limiter,
		Cache:    cache,
		GitHub:   gh,
		App:      app,
		Email:    sender,
	})

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	safego.Go(func() {
		slog.Info("server listening", "addr", cfg.Server.GetAddress(), "base_url", cfg.Server.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// startMetricsServer exposes Prometheus metrics on a dedicated port so the
// scrape path is not reachable through the public ingress and bypasses the
// request gate.
func startMetricsServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	safego.Go(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		slog.Info("starting Prometheus metrics server", "addr", addr)
		srv := &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	})
}
