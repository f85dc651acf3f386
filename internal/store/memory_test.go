package store

import (
	"context"
	"testing"
	"time"

	"github.com/example/taxi-backend/internal/models"
)

func TestUsersCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	u := &models.User{ID: NewID(), Name: "Amal", PhoneNumber: "+94771234567", Role: models.RolePassenger, IsActive: true}
	if err := s.Users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}

	got, err := s.Users.Get(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Amal" {
		t.Fatalf("name = %q", got.Name)
	}

	byPhone, err := s.Users.FindByPhone(ctx, "+94771234567")
	if err != nil {
		t.Fatal(err)
	}
	if byPhone.ID != u.ID {
		t.Fatalf("id = %q, want %q", byPhone.ID, u.ID)
	}

	if err := s.Users.Delete(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Users.Get(ctx, u.ID); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRidesPendingOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	base := time.Now()
	for i, id := range []string{"r2", "r1", "r3"} {
		offsets := map[string]time.Duration{"r1": 0, "r2": time.Minute, "r3": 2 * time.Minute}
		_ = i
		ride := &models.Ride{ID: id, Status: models.RideStatusPending, CreatedAt: base.Add(offsets[id])}
		if err := s.Rides.Create(ctx, ride); err != nil {
			t.Fatal(err)
		}
	}
	done := &models.Ride{ID: "r4", Status: models.RideStatusCompleted, CreatedAt: base}
	if err := s.Rides.Create(ctx, done); err != nil {
		t.Fatal(err)
	}

	pending, err := s.Rides.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("len = %d", len(pending))
	}
	for i, want := range []string{"r1", "r2", "r3"} {
		if pending[i].ID != want {
			t.Fatalf("pending[%d] = %s, want %s", i, pending[i].ID, want)
		}
	}
}

func TestSharedRidesPutIfRevision(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	sr := &models.SharedRide{ID: NewID(), TotalSeats: 4, AvailableSeats: 4, Status: "active", PostedDate: time.Now()}
	if err := s.SharedRides.Create(ctx, sr); err != nil {
		t.Fatal(err)
	}

	cur, err := s.SharedRides.Get(ctx, sr.ID)
	if err != nil {
		t.Fatal(err)
	}
	cur.AvailableSeats = 3
	if err := s.SharedRides.PutIfRevision(ctx, cur, cur.Revision); err != nil {
		t.Fatal(err)
	}

	// Stale revision must be rejected.
	stale := &models.SharedRide{ID: sr.ID, TotalSeats: 4, AvailableSeats: 2}
	if err := s.SharedRides.PutIfRevision(ctx, stale, 0); err != ErrConflict {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	after, err := s.SharedRides.Get(ctx, sr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.AvailableSeats != 3 {
		t.Fatalf("availableSeats = %d", after.AvailableSeats)
	}
	if after.Revision != 1 {
		t.Fatalf("revision = %d", after.Revision)
	}
}

func TestSharedRidesSearchByPickup(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	listings := []*models.SharedRide{
		{ID: "s1", PickupLocation: "Colombo Fort", Status: "active", PostedDate: time.Now()},
		{ID: "s2", PickupLocation: "Colombo 7", Status: "active", PostedDate: time.Now().Add(time.Minute)},
		{ID: "s3", PickupLocation: "Kandy", Status: "active", PostedDate: time.Now()},
		{ID: "s4", PickupLocation: "Colombo Fort", Status: "full", PostedDate: time.Now()},
	}
	for _, l := range listings {
		if err := s.SharedRides.Create(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.SharedRides.SearchByPickup(ctx, "Colombo", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "s2" {
		t.Fatalf("got[0] = %s, want s2 (newest first)", got[0].ID)
	}
}

func TestRatesSingleton(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if _, err := s.Rates.Get(ctx); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	r := &models.Rates{RatePerKm: 1.5, RateLKRPerKm: 450, ExchangeRate: 300, UpdatedAt: time.Now()}
	if err := s.Rates.Put(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.Rates.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.RatePerKm != 1.5 {
		t.Fatalf("ratePerKm = %v", got.RatePerKm)
	}

	if err := s.Rates.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Rates.Get(ctx); err != ErrNotFound {
		t.Fatalf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	sr := &models.SharedRide{ID: "s1", TotalSeats: 4, AvailableSeats: 4, Status: "active"}
	if err := s.SharedRides.Create(ctx, sr); err != nil {
		t.Fatal(err)
	}

	a, _ := s.SharedRides.Get(ctx, "s1")
	a.AvailableSeats = 0
	a.Bookings = append(a.Bookings, models.SeatBooking{PassengerName: "x"})

	b, _ := s.SharedRides.Get(ctx, "s1")
	if b.AvailableSeats != 4 || len(b.Bookings) != 0 {
		t.Fatalf("mutation leaked into store: %+v", b)
	}
}
