package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rocketstack/roadmapper/internal/tier"
)

func newClockedLimiter(start time.Time) (*Limiter, *time.Time) {
	clock := start
	l := NewMemory()
	l.now = func() time.Time { return clock }
	return l, &clock
}

// ---------------------------------------------------------------------------
// Window semantics
// ---------------------------------------------------------------------------

func TestWindowDeniesAboveQuota(t *testing.T) {
	ctx := context.Background()
	l, _ := newClockedLimiter(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	quota := tier.RateQuota(tier.Free) // 60/h

	for i := 0; i < quota.Requests; i++ {
		res := l.AllowRepo(ctx, "o", "r", tier.Free)
		if !res.Success {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}

	res := l.AllowRepo(ctx, "o", "r", tier.Free)
	if res.Success {
		t.Error("request above quota allowed, want denied")
	}
	if res.Limit != quota.Requests {
		t.Errorf("Limit = %d, want %d", res.Limit, quota.Requests)
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
}

func TestWindowResetsAfterElapse(t *testing.T) {
	ctx := context.Background()
	l, clock := newClockedLimiter(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < tier.RateQuota(tier.Free).Requests; i++ {
		l.AllowRepo(ctx, "o", "r", tier.Free)
	}
	if l.AllowRepo(ctx, "o", "r", tier.Free).Success {
		t.Fatal("over-quota request allowed before window elapsed")
	}

	*clock = clock.Add(time.Hour + time.Second)
	res := l.AllowRepo(ctx, "o", "r", tier.Free)
	if !res.Success {
		t.Error("request after window elapsed denied, want allowed")
	}
}

func TestWindowSlides(t *testing.T) {
	ctx := context.Background()
	l, clock := newClockedLimiter(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	// Fill half the quota, advance 31 minutes, fill the rest: the first half
	// falls out of the trailing hour only after another 30 minutes.
	for i := 0; i < 30; i++ {
		l.AllowRepo(ctx, "o", "r", tier.Free)
	}
	*clock = clock.Add(31 * time.Minute)
	for i := 0; i < 30; i++ {
		l.AllowRepo(ctx, "o", "r", tier.Free)
	}

	if l.AllowRepo(ctx, "o", "r", tier.Free).Success {
		t.Error("request allowed with full trailing window, want denied")
	}

	*clock = clock.Add(30 * time.Minute)
	if !l.AllowRepo(ctx, "o", "r", tier.Free).Success {
		t.Error("request denied after first batch slid out of window")
	}
}

// ---------------------------------------------------------------------------
// Identifier isolation
// ---------------------------------------------------------------------------

func TestWindowKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newClockedLimiter(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < tier.RateQuota(tier.Free).Requests; i++ {
		l.AllowRepo(ctx, "o", "r", tier.Free)
	}
	if l.AllowRepo(ctx, "o", "r", tier.Free).Success {
		t.Fatal("exhausted repo still allowed")
	}

	if !l.AllowRepo(ctx, "other", "repo", tier.Free).Success {
		t.Error("unrelated repo denied by exhausted window")
	}
	if !l.AllowIP(ctx, "203.0.113.9").Success {
		t.Error("IP limiter affected by repo window")
	}
}

func TestTierQuotasDiffer(t *testing.T) {
	ctx := context.Background()
	l, _ := newClockedLimiter(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	// The paid tier survives well past the free quota.
	for i := 0; i < 100; i++ {
		if !l.AllowRepo(ctx, "o", "r", tier.Paid).Success {
			t.Fatalf("paid request %d denied under quota", i+1)
		}
	}
}

func TestIPQuota(t *testing.T) {
	ctx := context.Background()
	l, _ := newClockedLimiter(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < tier.IPQuota.Requests; i++ {
		if !l.AllowIP(ctx, "198.51.100.7").Success {
			t.Fatalf("IP request %d denied under quota", i+1)
		}
	}
	if l.AllowIP(ctx, "198.51.100.7").Success {
		t.Error("IP request above backstop quota allowed")
	}
}
