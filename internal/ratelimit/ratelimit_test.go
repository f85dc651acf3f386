package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterBudget(t *testing.T) {
	l := NewMemoryLimiter(time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, err := l.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("fourth request should be rejected")
	}

	// A different caller has its own budget.
	ok, _ = l.Allow(ctx, "5.6.7.8")
	if !ok {
		t.Fatal("other caller should be allowed")
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l := NewMemoryLimiter(time.Minute, 1)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatal("first request should be allowed")
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatal("second request in window should be rejected")
	}

	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatal("request after window reset should be allowed")
	}
}
