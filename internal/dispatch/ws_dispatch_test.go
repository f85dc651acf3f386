package dispatch

import (
	"log/slog"
	"testing"
)

func TestRemoveDeletesOwnSession(t *testing.T) {
	r := NewWSRegistry(slog.Default())

	s := r.Add("driver-1", nil)
	r.Remove("driver-1", s)

	r.mu.RLock()
	_, ok := r.sessions["driver-1"]
	r.mu.RUnlock()
	if ok {
		t.Fatal("session still registered after remove")
	}
}

func TestRemoveIgnoresReplacedSession(t *testing.T) {
	r := NewWSRegistry(slog.Default())

	old := r.Add("driver-1", nil)
	fresh := r.Add("driver-1", nil)

	// The first connection tears down after the driver reconnected.
	// The fresh session must survive.
	r.Remove("driver-1", old)

	r.mu.RLock()
	got := r.sessions["driver-1"]
	r.mu.RUnlock()
	if got != fresh {
		t.Fatalf("session = %p, want the replacement %p", got, fresh)
	}
}

func TestOfferNoSession(t *testing.T) {
	r := NewWSRegistry(slog.Default())
	if err := r.Offer("nobody", RideOffer{RideID: "r-1"}); err != ErrNoSession {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}
