// Package main implements the set-tier admin tool. It rewrites the tier on a
// registered repository's key record and clears the repository's cached
// verification so the new tier takes effect on the next request instead of up
// to 24 hours later.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rocketstack/roadmapper/internal/config"
	"github.com/rocketstack/roadmapper/internal/githubapi"
	"github.com/rocketstack/roadmapper/internal/githubapp"
	"github.com/rocketstack/roadmapper/internal/keys"
	"github.com/rocketstack/roadmapper/internal/store"
	"github.com/rocketstack/roadmapper/internal/tier"
	"github.com/rocketstack/roadmapper/internal/verify"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	if len(os.Args) != 4 {
		return fmt.Errorf("usage: %s <owner> <repo> <free|paid>", os.Args[0])
	}
	owner, repo, tierName := os.Args[1], os.Args[2], os.Args[3]

	if !tier.Valid(tierName) {
		return fmt.Errorf("unknown tier %q (must be free or paid)", tierName)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Redis.Configured() {
		return fmt.Errorf("redis is not configured; set-tier must run against the shared store")
	}

	kv, err := store.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	ctx := context.Background()
	keySvc := keys.NewService(kv)

	if err := keySvc.SetTier(ctx, owner, repo, tier.Parse(tierName)); err != nil {
		return fmt.Errorf("failed to set tier for %s/%s: %w", owner, repo, err)
	}

	verifier := verify.NewGate(kv, keySvc, githubapp.NewTokenResolver(nil, ""), githubapi.NewClient(""))
	if err := verifier.InvalidateVerification(ctx, owner, repo); err != nil {
		return fmt.Errorf("tier updated but verification cache not cleared: %w", err)
	}

	fmt.Printf("%s/%s is now on the %s tier\n", owner, repo, tierName)
	return nil
}
