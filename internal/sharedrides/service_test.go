package sharedrides

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.NewMemory()
	return NewService(st, slog.Default()), st
}

func createListing(t *testing.T, svc *Service, seats int) *models.SharedRide {
	t.Helper()
	sr, err := svc.Create(context.Background(), CreateInput{
		DriverName:     "Saman",
		Vehicle:        "Toyota HiAce",
		PickupLocation: "Colombo Fort",
		Destination:    "Kandy",
		TotalSeats:     seats,
		Price:          "1500",
	})
	if err != nil {
		t.Fatal(err)
	}
	return sr
}

func TestBookSeatDecrementsAvailability(t *testing.T) {
	svc, _ := newTestService(t)
	sr := createListing(t, svc, 4)

	got, err := svc.BookSeat(context.Background(), BookSeatInput{
		ListingID:      sr.ID,
		PassengerName:  "Nimal",
		PassengerPhone: "+94770000001",
		Seats:          2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.AvailableSeats != 2 {
		t.Fatalf("availableSeats = %d", got.AvailableSeats)
	}
	if len(got.Bookings) != 1 || got.Bookings[0].SeatsBooked != 2 {
		t.Fatalf("bookings = %+v", got.Bookings)
	}
}

func TestBookSeatRejectsOverbooking(t *testing.T) {
	svc, _ := newTestService(t)
	sr := createListing(t, svc, 2)

	if _, err := svc.BookSeat(context.Background(), BookSeatInput{ListingID: sr.ID, PassengerName: "a", Seats: 3}); !errors.Is(err, ErrNoSeats) {
		t.Fatalf("err = %v, want ErrNoSeats", err)
	}
}

func TestBookSeatMarksFull(t *testing.T) {
	svc, _ := newTestService(t)
	sr := createListing(t, svc, 2)
	ctx := context.Background()

	got, err := svc.BookSeat(ctx, BookSeatInput{ListingID: sr.ID, PassengerName: "a", Seats: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "full" || got.AvailableSeats != 0 {
		t.Fatalf("listing = %+v", got)
	}

	if _, err := svc.BookSeat(ctx, BookSeatInput{ListingID: sr.ID, PassengerName: "b", Seats: 1}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("err = %v, want ErrNotActive", err)
	}
}

func TestReconcileAvailabilityPrefersInferredWhenHigher(t *testing.T) {
	sr := &models.SharedRide{
		TotalSeats:     4,
		AvailableSeats: 1, // drifted low
		Bookings:       []models.SeatBooking{{SeatsBooked: 1}},
	}
	if got := reconcileAvailability(sr); got != 3 {
		t.Fatalf("reconciled = %d, want 3 (inferred)", got)
	}

	// Stored lower than inferred is overridden; stored equal or higher
	// than inferred wins.
	sr = &models.SharedRide{
		TotalSeats:     4,
		AvailableSeats: 2,
		Bookings:       []models.SeatBooking{{SeatsBooked: 3}},
	}
	if got := reconcileAvailability(sr); got != 2 {
		t.Fatalf("reconciled = %d, want 2 (stored)", got)
	}
}

func TestConcurrentLastSeat(t *testing.T) {
	svc, _ := newTestService(t)
	sr := createListing(t, svc, 1)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.BookSeat(context.Background(), BookSeatInput{
				ListingID:     sr.ID,
				PassengerName: "racer",
				Seats:         1,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	final, err := svc.Get(context.Background(), sr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.AvailableSeats != 0 || final.BookedSeats() != 1 {
		t.Fatalf("final listing = %+v", final)
	}
}

func TestBookSeatValidatesRequest(t *testing.T) {
	svc, _ := newTestService(t)
	sr := createListing(t, svc, 2)

	if _, err := svc.BookSeat(context.Background(), BookSeatInput{ListingID: sr.ID, Seats: 0}); !errors.Is(err, ErrBadSeatsReq) {
		t.Fatalf("err = %v, want ErrBadSeatsReq", err)
	}
}
