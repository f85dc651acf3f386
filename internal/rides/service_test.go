package rides

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.NewMemory()
	return NewService(st, nil, nil, slog.Default()), st
}

func requestRide(t *testing.T, svc *Service) *CreateResult {
	t.Helper()
	res, err := svc.Create(context.Background(), CreateInput{
		PassengerName:  "Nimal",
		PassengerPhone: "+94770000001",
		Pickup:         &models.GeoPoint{Latitude: 6.9271, Longitude: 79.8612},
		Destination:    &models.GeoPoint{Latitude: 6.9350, Longitude: 79.8500},
		RideType:       models.RideTypeStandard,
	})
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestCreateResolvesPassengerByPhone(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	first := requestRide(t, svc)
	second := requestRide(t, svc)

	if first.Ride.PassengerID != second.Ride.PassengerID {
		t.Fatalf("same phone produced two passengers: %s vs %s", first.Ride.PassengerID, second.Ride.PassengerID)
	}

	u, err := st.Users.Get(ctx, first.Ride.PassengerID)
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != models.RolePassenger {
		t.Fatalf("role = %s", u.Role)
	}
}

func TestCreateSetsEstimatesAndBooking(t *testing.T) {
	svc, _ := newTestService(t)

	res := requestRide(t, svc)
	if res.Ride.Status != models.RideStatusPending {
		t.Fatalf("status = %s", res.Ride.Status)
	}
	if res.Ride.EstimatedDistance <= 0 {
		t.Fatalf("estimatedDistance = %v", res.Ride.EstimatedDistance)
	}
	if res.Ride.Fare <= 0 {
		t.Fatalf("fare = %v", res.Ride.Fare)
	}
	if res.Booking == nil || res.Booking.RideID != res.Ride.ID {
		t.Fatalf("booking = %+v", res.Booking)
	}
	if res.Booking.BookingNumber == "" {
		t.Fatal("booking number empty")
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	res := requestRide(t, svc)

	ride, err := svc.Accept(ctx, res.Ride.ID, "Kasun", "+94770000099")
	if err != nil {
		t.Fatal(err)
	}
	if ride.Status != models.RideStatusAccepted || ride.AcceptedAt == nil {
		t.Fatalf("after accept: %+v", ride)
	}
	if ride.DriverID == "" {
		t.Fatal("driver not assigned")
	}

	if ride, err = svc.Start(ctx, ride.ID); err != nil {
		t.Fatal(err)
	}
	if ride.Status != models.RideStatusInProgress || ride.PickupAt == nil {
		t.Fatalf("after start: %+v", ride)
	}

	if ride, err = svc.Complete(ctx, ride.ID, 11.2, 24, 21.50); err != nil {
		t.Fatal(err)
	}
	if ride.Status != models.RideStatusCompleted || ride.CompletedAt == nil {
		t.Fatalf("after complete: %+v", ride)
	}
	if ride.ActualDistance != 11.2 {
		t.Fatalf("actualDistance = %v", ride.ActualDistance)
	}
	if ride.Fare != 21.50 {
		t.Fatalf("fare = %v, want the settled amount", ride.Fare)
	}

	b, err := st.Bookings.FindByRide(ctx, ride.ID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.BookingCompleted {
		t.Fatalf("booking status = %s", b.Status)
	}

	driver, err := st.Users.Get(ctx, ride.DriverID)
	if err != nil {
		t.Fatal(err)
	}
	if driver.TotalRides != 1 {
		t.Fatalf("driver totalRides = %d", driver.TotalRides)
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res := requestRide(t, svc)

	// pending -> in_progress skips accepted.
	if _, err := svc.Start(ctx, res.Ride.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	// pending -> completed skips everything.
	if _, err := svc.Complete(ctx, res.Ride.ID, 0, 0, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelFromTerminalRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res := requestRide(t, svc)
	if _, err := svc.Cancel(ctx, res.Ride.ID, "changed plans", "passenger"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Cancel(ctx, res.Ride.ID, "again", "passenger"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelStampsBooking(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	res := requestRide(t, svc)
	ride, err := svc.Cancel(ctx, res.Ride.ID, "driver no-show", "passenger")
	if err != nil {
		t.Fatal(err)
	}
	if ride.CancelledAt == nil || ride.CancellationReason != "driver no-show" {
		t.Fatalf("ride = %+v", ride)
	}

	b, err := st.Bookings.FindByRide(ctx, ride.ID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.BookingCancelled || b.CancelledBy != "passenger" {
		t.Fatalf("booking = %+v", b)
	}
}

func TestRateRequiresCompleted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res := requestRide(t, svc)
	if _, err := svc.Rate(ctx, res.Ride.ID, 5, "great"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Rate(ctx, res.Ride.ID, 0, ""); !errors.Is(err, ErrBadRating) {
		t.Fatalf("err = %v, want ErrBadRating", err)
	}
	if _, err := svc.Rate(ctx, res.Ride.ID, 6, ""); !errors.Is(err, ErrBadRating) {
		t.Fatalf("err = %v, want ErrBadRating", err)
	}
}

func TestJoinSharedCapacity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateInput{
		PassengerName:  "Ruwan",
		PassengerPhone: "+94770000002",
		Pickup:         &models.GeoPoint{Latitude: 6.9, Longitude: 79.8},
		Destination:    &models.GeoPoint{Latitude: 7.0, Longitude: 79.9},
		RideType:       models.RideTypeShared,
		MaxPassengers:  2,
		Passengers:     1,
	})
	if err != nil {
		t.Fatal(err)
	}

	ride, err := svc.JoinShared(ctx, res.Ride.ID, "p-2", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ride.CurrentPassengers != 2 || len(ride.SharedPassengers) != 1 {
		t.Fatalf("ride = %+v", ride)
	}

	if _, err := svc.JoinShared(ctx, res.Ride.ID, "p-3", nil, nil); !errors.Is(err, ErrRideFull) {
		t.Fatalf("err = %v, want ErrRideFull", err)
	}
}

func TestCreateSharedRejectsOverCapacity(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		PassengerName:  "Sanduni",
		PassengerPhone: "+94770000003",
		Pickup:         &models.GeoPoint{Latitude: 6.9, Longitude: 79.8},
		Destination:    &models.GeoPoint{Latitude: 7.0, Longitude: 79.9},
		RideType:       models.RideTypeShared,
		Passengers:     6,
	})
	if !errors.Is(err, ErrRideFull) {
		t.Fatalf("err = %v, want ErrRideFull", err)
	}

	rides, err := st.Rides.List(ctx, store.RideFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rides) != 0 {
		t.Fatalf("rejected ride was stored: %+v", rides)
	}
}

func TestCreateSharedFullAtCapacity(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Create(context.Background(), CreateInput{
		PassengerName:  "Sanduni",
		PassengerPhone: "+94770000003",
		Pickup:         &models.GeoPoint{Latitude: 6.9, Longitude: 79.8},
		Destination:    &models.GeoPoint{Latitude: 7.0, Longitude: 79.9},
		RideType:       models.RideTypeShared,
		MaxPassengers:  3,
		Passengers:     3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Ride.CurrentPassengers != res.Ride.MaxPassengers {
		t.Fatalf("currentPassengers = %d, maxPassengers = %d", res.Ride.CurrentPassengers, res.Ride.MaxPassengers)
	}
}

func TestCompleteWithoutFareKeepsEstimate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res := requestRide(t, svc)
	estimate := res.Ride.Fare

	if _, err := svc.Accept(ctx, res.Ride.ID, "Kasun", "+94770000099"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Start(ctx, res.Ride.ID); err != nil {
		t.Fatal(err)
	}
	ride, err := svc.Complete(ctx, res.Ride.ID, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ride.Fare != estimate {
		t.Fatalf("fare = %v, want estimate %v", ride.Fare, estimate)
	}
}

func TestJoinSharedRejectsNonShared(t *testing.T) {
	svc, _ := newTestService(t)

	res := requestRide(t, svc)
	if _, err := svc.JoinShared(context.Background(), res.Ride.ID, "p-2", nil, nil); !errors.Is(err, ErrNotShared) {
		t.Fatalf("err = %v, want ErrNotShared", err)
	}
}

func TestPendingNearSortsByDistance(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	mk := func(id string, lat, lon float64) {
		ride := &models.Ride{
			ID:        id,
			Status:    models.RideStatusPending,
			Pickup:    &models.GeoPoint{Latitude: lat, Longitude: lon},
			CreatedAt: time.Now(),
		}
		if err := st.Rides.Create(ctx, ride); err != nil {
			t.Fatal(err)
		}
	}
	mk("far", 6.98, 79.86)
	mk("near", 6.9275, 79.8615)
	mk("out-of-range", 7.30, 80.60)

	got, err := svc.PendingNear(ctx, 6.9271, 79.8612, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "near" || got[1].ID != "far" {
		t.Fatalf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Distance <= 0 || got[0].Distance >= got[1].Distance {
		t.Fatalf("distances = %v, %v", got[0].Distance, got[1].Distance)
	}
}

func TestFindSharedMatchesSkipsFullRides(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	full := &models.Ride{
		ID:                "full",
		RideType:          models.RideTypeShared,
		Status:            models.RideStatusPending,
		Pickup:            &models.GeoPoint{Latitude: 6.93, Longitude: 79.86},
		MaxPassengers:     2,
		CurrentPassengers: 2,
		CreatedAt:         time.Now(),
	}
	open := &models.Ride{
		ID:                "open",
		RideType:          models.RideTypeShared,
		Status:            models.RideStatusAccepted,
		Pickup:            &models.GeoPoint{Latitude: 6.93, Longitude: 79.86},
		MaxPassengers:     3,
		CurrentPassengers: 1,
		CreatedAt:         time.Now(),
	}
	for _, r := range []*models.Ride{full, open} {
		if err := st.Rides.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.FindSharedMatches(ctx, 6.9271, 79.8612, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "open" {
		t.Fatalf("got = %+v", got)
	}
}

func TestDriversNearOnlineOnly(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	mk := func(id string, online bool, lat, lon float64) {
		u := &models.User{
			ID: id, Role: models.RoleDriver, IsActive: true, IsOnline: online,
			CurrentLocation: &models.DriverLocation{GeoPoint: models.GeoPoint{Latitude: lat, Longitude: lon}},
		}
		if err := st.Users.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	mk("online-near", true, 6.9275, 79.8615)
	mk("offline-near", false, 6.9275, 79.8615)

	got, err := svc.DriversNear(ctx, 6.9271, 79.8612, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "online-near" {
		t.Fatalf("got = %+v", got)
	}
}
