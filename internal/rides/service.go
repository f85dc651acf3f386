// Package rides implements the ride lifecycle: request, accept, start,
// complete, cancel, rate, and shared-ride joining. State transitions are
// strict; side effects on related records are best effort.
package rides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/example/taxi-backend/internal/dispatch"
	"github.com/example/taxi-backend/internal/fare"
	"github.com/example/taxi-backend/internal/geo"
	"github.com/example/taxi-backend/internal/ingest"
	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/observability"
	"github.com/example/taxi-backend/internal/store"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRideFull          = errors.New("ride is full")
	ErrNotShared         = errors.New("ride is not a shared ride")
	ErrBadRating         = errors.New("rating must be between 1 and 5")
)

type Service struct {
	store    *store.Store
	events   ingest.Publisher
	registry *dispatch.WSRegistry
	log      *slog.Logger
	now      func() time.Time
}

func NewService(st *store.Store, events ingest.Publisher, registry *dispatch.WSRegistry, log *slog.Logger) *Service {
	if events == nil {
		events = ingest.NopPublisher{}
	}
	return &Service{store: st, events: events, registry: registry, log: log, now: time.Now}
}

// CreateInput describes a ride request. Passenger identity is resolved
// by phone number; unseen numbers get a passenger record on the fly.
type CreateInput struct {
	PassengerName  string
	PassengerPhone string
	Pickup         *models.GeoPoint
	Destination    *models.GeoPoint
	PickupAddress  string
	DestAddress    string
	RideType       models.RideType
	PaymentMethod  string
	Passengers     int
	MaxPassengers  int
	Notes          string
	RawPayload     map[string]any
}

// CreateResult bundles the stored ride with its booking record.
type CreateResult struct {
	Ride    *models.Ride    `json:"ride"`
	Booking *models.Booking `json:"booking"`
}

// Create stores a new pending ride plus its booking. The booking write
// is best effort: if it fails the ride is still returned.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.PassengerPhone == "" {
		return nil, fmt.Errorf("passenger phone is required")
	}
	if in.Pickup == nil || in.Destination == nil {
		return nil, fmt.Errorf("pickup and destination are required")
	}

	passenger, err := s.findOrCreatePassenger(ctx, in.PassengerName, in.PassengerPhone)
	if err != nil {
		return nil, fmt.Errorf("resolve passenger: %w", err)
	}

	rideType := in.RideType
	if rideType == "" {
		rideType = models.RideTypeStandard
	}

	now := s.now()
	distance := geo.Haversine(in.Pickup.Latitude, in.Pickup.Longitude, in.Destination.Latitude, in.Destination.Longitude)
	duration := geo.EstimateDurationMins(distance, 0)

	ride := &models.Ride{
		ID:                 store.NewID(),
		PassengerID:        passenger.ID,
		Pickup:             in.Pickup,
		Destination:        in.Destination,
		PickupAddress:      in.PickupAddress,
		DestinationAddress: in.DestAddress,
		RideType:           rideType,
		Status:             models.RideStatusPending,
		EstimatedDistance:  distance,
		EstimatedDuration:  duration,
		Fare:               fare.Estimate(distance, duration, rideType).TotalFare,
		PaymentMethod:      in.PaymentMethod,
		PaymentStatus:      "pending",
		Passengers:         max(in.Passengers, 1),
		Notes:              in.Notes,
		RawPayload:         in.RawPayload,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if rideType == models.RideTypeShared {
		ride.MaxPassengers = in.MaxPassengers
		if ride.MaxPassengers <= 0 {
			ride.MaxPassengers = 4
		}
		if ride.Passengers > ride.MaxPassengers {
			return nil, fmt.Errorf("%w: %d passengers on a %d seat shared ride", ErrRideFull, ride.Passengers, ride.MaxPassengers)
		}
		ride.CurrentPassengers = ride.Passengers
	}

	if err := s.store.Rides.Create(ctx, ride); err != nil {
		return nil, err
	}
	observability.RidesCreatedTotal.Inc()

	res := &CreateResult{Ride: ride}
	booking := &models.Booking{
		ID:            store.NewID(),
		RideID:        ride.ID,
		PassengerID:   passenger.ID,
		BookingNumber: newBookingNumber(now),
		Status:        models.BookingConfirmed,
		BookingType:   string(rideType),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Bookings.Create(ctx, booking); err != nil {
		observability.CascadeFailuresTotal.Inc()
		s.log.Warn("ride created but booking write failed", "ride_id", ride.ID, "error", err)
	} else {
		res.Booking = booking
	}

	s.publish(ride)
	s.offer(ride)
	return res, nil
}

// CreatePrivate stores a private ride from a tolerantly-parsed payload,
// preserving the raw client body on the record.
func (s *Service) CreatePrivate(ctx context.Context, name, phone string, pickup, dest *models.GeoPoint, pickupAddr, destAddr string, passengers int, notes string, raw map[string]any) (*CreateResult, error) {
	return s.Create(ctx, CreateInput{
		PassengerName:  name,
		PassengerPhone: phone,
		Pickup:         pickup,
		Destination:    dest,
		PickupAddress:  pickupAddr,
		DestAddress:    destAddr,
		RideType:       models.RideTypePrivate,
		Passengers:     passengers,
		Notes:          notes,
		RawPayload:     raw,
	})
}

// Accept assigns a driver to a pending ride. Drivers are resolved by
// phone the same way passengers are on Create.
func (s *Service) Accept(ctx context.Context, rideID, driverName, driverPhone string) (*models.Ride, error) {
	ride, err := s.store.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideStatusPending {
		return nil, fmt.Errorf("%w: %s -> accepted", ErrInvalidTransition, ride.Status)
	}

	driver, err := s.findOrCreateDriver(ctx, driverName, driverPhone)
	if err != nil {
		return nil, fmt.Errorf("resolve driver: %w", err)
	}

	now := s.now()
	ride.DriverID = driver.ID
	ride.Status = models.RideStatusAccepted
	ride.AcceptedAt = &now
	ride.UpdatedAt = now
	if err := s.store.Rides.Put(ctx, ride); err != nil {
		return nil, err
	}

	s.updateBooking(ctx, ride.ID, func(b *models.Booking) {
		b.DriverID = driver.ID
	})
	s.publish(ride)
	return ride, nil
}

// Start moves an accepted ride into progress.
func (s *Service) Start(ctx context.Context, rideID string) (*models.Ride, error) {
	ride, err := s.store.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideStatusAccepted {
		return nil, fmt.Errorf("%w: %s -> in_progress", ErrInvalidTransition, ride.Status)
	}

	now := s.now()
	ride.Status = models.RideStatusInProgress
	ride.PickupAt = &now
	ride.UpdatedAt = now
	if err := s.store.Rides.Put(ctx, ride); err != nil {
		return nil, err
	}
	s.publish(ride)
	return ride, nil
}

// Complete finishes an in-progress ride, recording actuals when given.
func (s *Service) Complete(ctx context.Context, rideID string, actualDistance, actualDuration, actualFare float64) (*models.Ride, error) {
	ride, err := s.store.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideStatusInProgress {
		return nil, fmt.Errorf("%w: %s -> completed", ErrInvalidTransition, ride.Status)
	}

	now := s.now()
	ride.Status = models.RideStatusCompleted
	ride.CompletedAt = &now
	ride.UpdatedAt = now
	if actualDistance > 0 {
		ride.ActualDistance = actualDistance
	}
	if actualDuration > 0 {
		ride.ActualDuration = actualDuration
	}
	if actualFare > 0 {
		ride.Fare = actualFare
	}
	if err := s.store.Rides.Put(ctx, ride); err != nil {
		return nil, err
	}
	observability.RidesCompletedTotal.Inc()

	s.updateBooking(ctx, ride.ID, func(b *models.Booking) {
		b.Status = models.BookingCompleted
		b.CompletedAt = &now
	})
	s.bumpRideCounts(ctx, ride)
	s.publish(ride)
	return ride, nil
}

// Cancel aborts a ride from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, rideID, reason, cancelledBy string) (*models.Ride, error) {
	ride, err := s.store.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, ride.Status)
	}

	now := s.now()
	ride.Status = models.RideStatusCancelled
	ride.CancellationReason = reason
	ride.CancelledAt = &now
	ride.UpdatedAt = now
	if err := s.store.Rides.Put(ctx, ride); err != nil {
		return nil, err
	}

	s.updateBooking(ctx, ride.ID, func(b *models.Booking) {
		b.Status = models.BookingCancelled
		b.CancellationReason = reason
		b.CancelledBy = cancelledBy
		b.CancelledAt = &now
	})
	s.publish(ride)
	return ride, nil
}

// Rate records passenger feedback on a completed ride and refreshes the
// driver's running average.
func (s *Service) Rate(ctx context.Context, rideID string, rating int, feedback string) (*models.Ride, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrBadRating
	}
	ride, err := s.store.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, fmt.Errorf("%w: only completed rides can be rated, ride is %s", ErrInvalidTransition, ride.Status)
	}

	ride.Rating = rating
	ride.Feedback = feedback
	ride.UpdatedAt = s.now()
	if err := s.store.Rides.Put(ctx, ride); err != nil {
		return nil, err
	}

	if ride.DriverID != "" {
		if err := s.refreshDriverRating(ctx, ride.DriverID, rating); err != nil {
			observability.CascadeFailuresTotal.Inc()
			s.log.Warn("rating saved but driver average update failed", "driver_id", ride.DriverID, "error", err)
		}
	}
	return ride, nil
}

// JoinShared adds a passenger to an open shared ride.
func (s *Service) JoinShared(ctx context.Context, rideID, passengerID string, pickup, destination *models.GeoPoint) (*models.Ride, error) {
	ride, err := s.store.Rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RideType != models.RideTypeShared {
		return nil, ErrNotShared
	}
	if ride.Status != models.RideStatusPending && ride.Status != models.RideStatusAccepted {
		return nil, fmt.Errorf("%w: shared ride is %s", ErrInvalidTransition, ride.Status)
	}
	if ride.CurrentPassengers >= ride.MaxPassengers {
		return nil, ErrRideFull
	}

	now := s.now()
	ride.CurrentPassengers++
	ride.SharedPassengers = append(ride.SharedPassengers, models.SharedPassenger{
		PassengerID: passengerID,
		Pickup:      pickup,
		Destination: destination,
		JoinedAt:    now,
	})
	ride.UpdatedAt = now
	if err := s.store.Rides.Put(ctx, ride); err != nil {
		return nil, err
	}
	return ride, nil
}

// PendingNear returns pending rides whose pickup lies within radiusKm of
// the given point, nearest first.
func (s *Service) PendingNear(ctx context.Context, lat, lon, radiusKm float64) ([]*models.Ride, error) {
	pending, err := s.store.Rides.Pending(ctx)
	if err != nil {
		return nil, err
	}
	near := geo.FilterByRadius(lat, lon, radiusKm, pending)
	out := make([]*models.Ride, 0, len(near))
	for _, n := range near {
		n.Item.Distance = n.Distance
		out = append(out, n.Item)
	}
	return out, nil
}

// FindSharedMatches returns open shared rides with free seats whose
// pickup is within radiusKm, nearest first.
func (s *Service) FindSharedMatches(ctx context.Context, lat, lon, radiusKm float64) ([]*models.Ride, error) {
	open, err := s.store.Rides.OpenShared(ctx)
	if err != nil {
		return nil, err
	}
	withSeats := open[:0]
	for _, r := range open {
		if r.CurrentPassengers < r.MaxPassengers {
			withSeats = append(withSeats, r)
		}
	}
	near := geo.FilterByRadius(lat, lon, radiusKm, withSeats)
	out := make([]*models.Ride, 0, len(near))
	for _, n := range near {
		n.Item.Distance = n.Distance
		out = append(out, n.Item)
	}
	return out, nil
}

// DriversNear returns online drivers within radiusKm of a point, nearest
// first.
func (s *Service) DriversNear(ctx context.Context, lat, lon, radiusKm float64) ([]*models.User, error) {
	online := true
	drivers, err := s.store.Users.ListDrivers(ctx, store.DriverFilter{Online: &online, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	near := geo.FilterByRadius(lat, lon, radiusKm, drivers)
	out := make([]*models.User, 0, len(near))
	for _, n := range near {
		out = append(out, n.Item)
	}
	return out, nil
}

func (s *Service) findOrCreatePassenger(ctx context.Context, name, phone string) (*models.User, error) {
	return s.findOrCreateUser(ctx, name, phone, models.RolePassenger)
}

func (s *Service) findOrCreateDriver(ctx context.Context, name, phone string) (*models.User, error) {
	return s.findOrCreateUser(ctx, name, phone, models.RoleDriver)
}

func (s *Service) findOrCreateUser(ctx context.Context, name, phone string, role models.Role) (*models.User, error) {
	if phone == "" {
		return nil, fmt.Errorf("phone is required")
	}
	u, err := s.store.Users.FindByPhone(ctx, phone)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	u = &models.User{
		ID:          store.NewID(),
		Name:        name,
		PhoneNumber: phone,
		Role:        role,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// updateBooking applies fn to the ride's booking record. Failures are
// logged and counted but never surfaced.
func (s *Service) updateBooking(ctx context.Context, rideID string, fn func(*models.Booking)) {
	b, err := s.store.Bookings.FindByRide(ctx, rideID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			observability.CascadeFailuresTotal.Inc()
			s.log.Warn("booking lookup failed during ride update", "ride_id", rideID, "error", err)
		}
		return
	}
	fn(b)
	b.UpdatedAt = s.now()
	if err := s.store.Bookings.Put(ctx, b); err != nil {
		observability.CascadeFailuresTotal.Inc()
		s.log.Warn("booking update failed during ride update", "ride_id", rideID, "error", err)
	}
}

func (s *Service) bumpRideCounts(ctx context.Context, ride *models.Ride) {
	for _, id := range []string{ride.PassengerID, ride.DriverID} {
		if id == "" {
			continue
		}
		u, err := s.store.Users.Get(ctx, id)
		if err != nil {
			observability.CascadeFailuresTotal.Inc()
			s.log.Warn("ride count update failed", "user_id", id, "error", err)
			continue
		}
		u.TotalRides++
		u.UpdatedAt = s.now()
		if err := s.store.Users.Put(ctx, u); err != nil {
			observability.CascadeFailuresTotal.Inc()
			s.log.Warn("ride count update failed", "user_id", id, "error", err)
		}
	}
}

func (s *Service) refreshDriverRating(ctx context.Context, driverID string, rating int) error {
	d, err := s.store.Users.Get(ctx, driverID)
	if err != nil {
		return err
	}
	// Running average weighted by completed rides.
	n := float64(max(d.TotalRides, 1))
	d.Rating = (d.Rating*(n-1) + float64(rating)) / n
	d.UpdatedAt = s.now()
	return s.store.Users.Put(ctx, d)
}

func (s *Service) publish(ride *models.Ride) {
	ev := models.RideEvent{RideID: ride.ID, Status: ride.Status, DriverID: ride.DriverID, At: s.now()}
	if err := s.events.PublishRideEvent(ev); err != nil {
		s.log.Warn("ride event publish failed", "ride_id", ride.ID, "error", err)
	}
}

func (s *Service) offer(ride *models.Ride) {
	if s.registry == nil || ride.Status != models.RideStatusPending {
		return
	}
	sent := s.registry.Broadcast(dispatch.RideOffer{
		RideID:         ride.ID,
		RideType:       ride.RideType,
		PickupLocation: ride.PickupAddress,
		Destination:    ride.DestinationAddress,
		EstimatedFare:  ride.Fare,
	})
	if sent > 0 {
		s.log.Debug("ride offered to drivers", "ride_id", ride.ID, "sessions", sent)
	}
}

func newBookingNumber(now time.Time) string {
	return fmt.Sprintf("BK%s%04d", now.Format("20060102"), rand.Intn(10000))
}
