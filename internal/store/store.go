// Package store provides per-entity repositories over the backing
// document database. Production uses MongoDB; an in-memory
// implementation backs local runs and tests.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/taxi-backend/internal/models"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by conditional writes when the document
	// changed underneath the caller.
	ErrConflict = errors.New("revision conflict")
)

// NewID mints a document key.
func NewID() string { return primitive.NewObjectID().Hex() }

// RideFilter narrows ride listings. Zero values mean "any".
type RideFilter struct {
	Status   models.RideStatus
	RideType models.RideType
	Limit    int
}

// DriverFilter narrows driver listings.
type DriverFilter struct {
	Online     *bool
	ActiveOnly bool
	Limit      int
}

type Users interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	Put(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
	ListDrivers(ctx context.Context, f DriverFilter) ([]*models.User, error)
}

type Rides interface {
	Create(ctx context.Context, r *models.Ride) error
	Get(ctx context.Context, id string) (*models.Ride, error)
	// List returns rides matching f, newest first.
	List(ctx context.Context, f RideFilter) ([]*models.Ride, error)
	// Pending returns all pending rides, oldest first.
	Pending(ctx context.Context) ([]*models.Ride, error)
	// OpenShared returns shared rides still accepting passengers
	// (status pending or accepted).
	OpenShared(ctx context.Context) ([]*models.Ride, error)
	Put(ctx context.Context, r *models.Ride) error
	Delete(ctx context.Context, id string) error
}

type Bookings interface {
	Create(ctx context.Context, b *models.Booking) error
	Get(ctx context.Context, id string) (*models.Booking, error)
	FindByRide(ctx context.Context, rideID string) (*models.Booking, error)
	Put(ctx context.Context, b *models.Booking) error
	Delete(ctx context.Context, id string) error
}

type SharedRides interface {
	Create(ctx context.Context, s *models.SharedRide) error
	Get(ctx context.Context, id string) (*models.SharedRide, error)
	// List returns listings newest first.
	List(ctx context.Context, limit int) ([]*models.SharedRide, error)
	// SearchByPickup returns active listings whose pickup location
	// starts with prefix.
	SearchByPickup(ctx context.Context, prefix string, limit int) ([]*models.SharedRide, error)
	Put(ctx context.Context, s *models.SharedRide) error
	// PutIfRevision replaces the listing only when the stored revision
	// still equals expected, bumping the revision on success. Returns
	// ErrConflict otherwise. This is the store's compare-and-set
	// primitive; seat booking depends on it.
	PutIfRevision(ctx context.Context, s *models.SharedRide, expected int64) error
	Delete(ctx context.Context, id string) error
}

type Vehicles interface {
	Create(ctx context.Context, v *models.Vehicle) error
	Get(ctx context.Context, id string) (*models.Vehicle, error)
	List(ctx context.Context) ([]*models.Vehicle, error)
	Put(ctx context.Context, v *models.Vehicle) error
	Delete(ctx context.Context, id string) error
}

type Payments interface {
	Create(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, id string) (*models.Payment, error)
	FindByIntent(ctx context.Context, intentID string) (*models.Payment, error)
	ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*models.Payment, error)
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.Payment, error)
	Put(ctx context.Context, p *models.Payment) error
}

type Reviews interface {
	Create(ctx context.Context, r *models.Review) error
	// List returns reviews newest first; rideID "" means all.
	List(ctx context.Context, rideID string, limit int) ([]*models.Review, error)
	Delete(ctx context.Context, id string) error
}

type Rates interface {
	Get(ctx context.Context) (*models.Rates, error)
	Put(ctx context.Context, r *models.Rates) error
	Delete(ctx context.Context) error
}

type PersonalRides interface {
	Create(ctx context.Context, p *models.PersonalRide) error
	Get(ctx context.Context, id string) (*models.PersonalRide, error)
	List(ctx context.Context, limit int) ([]*models.PersonalRide, error)
	Put(ctx context.Context, p *models.PersonalRide) error
	Delete(ctx context.Context, id string) error
}

// Store bundles every repository behind one handle.
type Store struct {
	Users         Users
	Rides         Rides
	Bookings      Bookings
	SharedRides   SharedRides
	Vehicles      Vehicles
	Payments      Payments
	Reviews       Reviews
	Rates         Rates
	PersonalRides PersonalRides
}
