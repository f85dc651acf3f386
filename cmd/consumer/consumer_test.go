package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/store"
)

// fakeUpdater implements driverUpdater for tests
type fakeUpdater struct {
	fail  int // number of times to fail before succeeding
	err   error
	calls int
	last  models.DriverEvent
}

func (f *fakeUpdater) Apply(_ context.Context, ev models.DriverEvent) error {
	f.calls++
	f.last = ev
	if f.calls <= f.fail {
		if f.err != nil {
			return f.err
		}
		return errors.New("apply fail")
	}
	return nil
}

func TestApplyWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{fail: 1}
	ev := models.DriverEvent{DriverID: "d1", Location: models.GeoPoint{Latitude: 1, Longitude: 2}, IsOnline: true}
	start := time.Now()
	if err := applyWithRetry(context.Background(), f, ev, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestApplyWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{fail: 5}
	ev := models.DriverEvent{DriverID: "d1"}
	if err := applyWithRetry(context.Background(), f, ev, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", f.calls)
	}
}

func TestApplyWithRetry_NotFoundDoesNotRetry(t *testing.T) {
	f := &fakeUpdater{fail: 5, err: store.ErrNotFound}
	ev := models.DriverEvent{DriverID: "ghost"}
	if err := applyWithRetry(context.Background(), f, ev, 3, time.Millisecond); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("expected 1 call, got %d", f.calls)
	}
}

func TestStoreUpdaterAppliesEvent(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	d := &models.User{ID: "d1", Name: "Saman", PhoneNumber: "+94770001111", Role: models.RoleDriver, Rating: 4.0}
	if err := st.Users.Create(ctx, d); err != nil {
		t.Fatal(err)
	}

	u := &storeUpdater{users: st.Users}
	ev := models.DriverEvent{
		DriverID: "d1",
		Location: models.GeoPoint{Latitude: 6.9271, Longitude: 79.8612},
		IsOnline: true,
		Rating:   4.8,
	}
	if err := u.Apply(ctx, ev); err != nil {
		t.Fatal(err)
	}

	got, err := st.Users.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentLocation == nil || got.CurrentLocation.Latitude != 6.9271 {
		t.Fatalf("location not applied: %+v", got.CurrentLocation)
	}
	if !got.IsOnline || got.Rating != 4.8 {
		t.Fatalf("online/rating not applied: online=%v rating=%v", got.IsOnline, got.Rating)
	}

	if err := u.Apply(ctx, models.DriverEvent{DriverID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
