// Package sharedrides manages multi-seat ride listings and seat
// reservations on them. Seat bookings go through a compare-and-set loop
// so concurrent requests for the last seat cannot both win.
package sharedrides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/observability"
	"github.com/example/taxi-backend/internal/store"
)

var (
	ErrNoSeats     = errors.New("no seats available")
	ErrNotActive   = errors.New("listing is not active")
	ErrBadSeatsReq = errors.New("seats must be at least 1")
)

// casAttempts bounds the booking retry loop under contention.
const casAttempts = 5

type Service struct {
	store *store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(st *store.Store, log *slog.Logger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

// CreateInput mirrors the listing fields drivers post.
type CreateInput struct {
	DriverName     string
	DriverImage    string
	Vehicle        string
	PickupLocation string
	Destination    string
	Time           string
	Duration       string
	Passengers     string
	Luggage        string
	HandCarry      string
	TotalSeats     int
	Price          string
	Frequency      string
	PickupDate     *time.Time
	RawPayload     map[string]any
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.SharedRide, error) {
	if in.TotalSeats <= 0 {
		return nil, fmt.Errorf("totalSeats must be positive")
	}
	now := s.now()
	sr := &models.SharedRide{
		ID:             store.NewID(),
		DriverName:     in.DriverName,
		DriverImage:    in.DriverImage,
		Vehicle:        in.Vehicle,
		PickupLocation: in.PickupLocation,
		Destination:    in.Destination,
		Time:           in.Time,
		Duration:       in.Duration,
		Passengers:     in.Passengers,
		Luggage:        in.Luggage,
		HandCarry:      in.HandCarry,
		TotalSeats:     in.TotalSeats,
		AvailableSeats: in.TotalSeats,
		Price:          in.Price,
		Frequency:      in.Frequency,
		Status:         "active",
		Bookings:       []models.SeatBooking{},
		PickupDate:     in.PickupDate,
		PostedDate:     now,
		RawPayload:     in.RawPayload,
		UpdatedAt:      now,
	}
	if err := s.store.SharedRides.Create(ctx, sr); err != nil {
		return nil, err
	}
	return sr, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.SharedRide, error) {
	return s.store.SharedRides.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]*models.SharedRide, error) {
	return s.store.SharedRides.List(ctx, limit)
}

func (s *Service) Search(ctx context.Context, pickupPrefix string, limit int) ([]*models.SharedRide, error) {
	return s.store.SharedRides.SearchByPickup(ctx, pickupPrefix, limit)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.SharedRides.Delete(ctx, id)
}

// BookSeatInput is one passenger's seat request.
type BookSeatInput struct {
	ListingID      string
	PassengerName  string
	PassengerPhone string
	Seats          int
}

// BookSeat reserves seats on a listing. The stored availableSeats counter
// is reconciled against the booking records before the check: when the
// count inferred from bookings is higher than the stored counter, the
// inferred value wins (the counter drifted low); otherwise the stored
// counter is trusted. The write is a compare-and-set on the listing
// revision, retried a bounded number of times.
func (s *Service) BookSeat(ctx context.Context, in BookSeatInput) (*models.SharedRide, error) {
	if in.Seats < 1 {
		return nil, ErrBadSeatsReq
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		sr, err := s.store.SharedRides.Get(ctx, in.ListingID)
		if err != nil {
			return nil, err
		}
		if sr.Status != "active" {
			return nil, ErrNotActive
		}

		available := reconcileAvailability(sr)
		if in.Seats > available {
			return nil, ErrNoSeats
		}

		now := s.now()
		sr.Bookings = append(sr.Bookings, models.SeatBooking{
			ID:             store.NewID(),
			RideID:         sr.ID,
			PassengerName:  in.PassengerName,
			PassengerPhone: in.PassengerPhone,
			SeatsBooked:    in.Seats,
			Status:         "confirmed",
			BookingDate:    now,
		})
		sr.AvailableSeats = available - in.Seats
		if sr.AvailableSeats == 0 {
			sr.Status = "full"
		}
		sr.UpdatedAt = now

		err = s.store.SharedRides.PutIfRevision(ctx, sr, sr.Revision)
		if err == nil {
			observability.SeatBookingsTotal.Inc()
			return sr, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		observability.SeatConflictsTotal.Inc()
		s.log.Debug("seat booking retry after conflict", "listing_id", in.ListingID, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("booking %s: too many concurrent updates", in.ListingID)
}

// reconcileAvailability returns the seat count the booking decision uses.
// Inferred availability (total minus booked) is preferred only when it is
// higher than the stored counter.
func reconcileAvailability(sr *models.SharedRide) int {
	inferred := sr.TotalSeats - sr.BookedSeats()
	if inferred < 0 {
		inferred = 0
	}
	if inferred > sr.AvailableSeats {
		return inferred
	}
	return sr.AvailableSeats
}
