package models

import "time"

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

type RideStatus string

const (
	RideStatusPending    RideStatus = "pending"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

type RideType string

const (
	RideTypeStandard RideType = "standard"
	RideTypeShared   RideType = "shared"
	RideTypePremium  RideType = "premium"
	RideTypeVan      RideType = "van"
	RideTypePrivate  RideType = "private"
	RideTypePersonal RideType = "personal"
)

// DriverLocation is a driver's last reported position.
type DriverLocation struct {
	GeoPoint  `bson:",inline"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type VehicleInfo struct {
	Make         string `json:"make,omitempty" bson:"make,omitempty"`
	Model        string `json:"model,omitempty" bson:"model,omitempty"`
	Year         int    `json:"year,omitempty" bson:"year,omitempty"`
	Color        string `json:"color,omitempty" bson:"color,omitempty"`
	LicensePlate string `json:"licensePlate,omitempty" bson:"licensePlate,omitempty"`
	Capacity     int    `json:"capacity,omitempty" bson:"capacity,omitempty"`
}

type User struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	PhoneNumber    string    `json:"phoneNumber" bson:"phoneNumber"`
	Email          string    `json:"email,omitempty" bson:"email,omitempty"`
	Role           Role      `json:"role" bson:"role"`
	Rating         float64   `json:"rating" bson:"rating"`
	TotalRides     int       `json:"totalRides" bson:"totalRides"`
	IsActive       bool      `json:"isActive" bson:"isActive"`
	IsVerified     bool      `json:"isVerified" bson:"isVerified"`
	ProfilePicture string    `json:"profilePicture,omitempty" bson:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`

	// Driver-only fields.
	VehicleInfo        *VehicleInfo    `json:"vehicleInfo,omitempty" bson:"vehicleInfo,omitempty"`
	IsOnline           bool            `json:"isOnline,omitempty" bson:"isOnline,omitempty"`
	DocumentsVerified  bool            `json:"documentsVerified,omitempty" bson:"documentsVerified,omitempty"`
	CurrentLocation    *DriverLocation `json:"currentLocation,omitempty" bson:"currentLocation,omitempty"`
	DeactivationReason string          `json:"deactivationReason,omitempty" bson:"deactivationReason,omitempty"`
}

// SharedPassenger is a passenger joined onto a shared ride.
type SharedPassenger struct {
	PassengerID string    `json:"passengerId" bson:"passengerId"`
	Pickup      *GeoPoint `json:"pickupLocation,omitempty" bson:"pickupLocation,omitempty"`
	Destination *GeoPoint `json:"destination,omitempty" bson:"destination,omitempty"`
	JoinedAt    time.Time `json:"joinedAt" bson:"joinedAt"`
}

type Ride struct {
	ID                 string     `json:"id" bson:"_id"`
	PassengerID        string     `json:"passengerId" bson:"passengerId"`
	DriverID           string     `json:"driverId,omitempty" bson:"driverId,omitempty"`
	Pickup             *GeoPoint  `json:"pickupLocation" bson:"pickupLocation"`
	Destination        *GeoPoint  `json:"destination" bson:"destination"`
	PickupAddress      string     `json:"pickupAddress,omitempty" bson:"pickupAddress,omitempty"`
	DestinationAddress string     `json:"destinationAddress,omitempty" bson:"destinationAddress,omitempty"`
	RideType           RideType   `json:"rideType" bson:"rideType"`
	Status             RideStatus `json:"status" bson:"status"`
	Fare               float64    `json:"fare,omitempty" bson:"fare,omitempty"`
	EstimatedDistance  float64    `json:"estimatedDistance,omitempty" bson:"estimatedDistance,omitempty"`
	EstimatedDuration  float64    `json:"estimatedDuration,omitempty" bson:"estimatedDuration,omitempty"`
	ActualDistance     float64    `json:"actualDistance,omitempty" bson:"actualDistance,omitempty"`
	ActualDuration     float64    `json:"actualDuration,omitempty" bson:"actualDuration,omitempty"`
	PaymentMethod      string     `json:"paymentMethod,omitempty" bson:"paymentMethod,omitempty"`
	PaymentStatus      string     `json:"paymentStatus" bson:"paymentStatus"`
	Passengers         int        `json:"passengers" bson:"passengers"`
	Notes              string     `json:"notes,omitempty" bson:"notes,omitempty"`
	Rating             int        `json:"rating,omitempty" bson:"rating,omitempty"`
	Feedback           string     `json:"feedback,omitempty" bson:"feedback,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`

	AcceptedAt  *time.Time `json:"acceptedTime,omitempty" bson:"acceptedTime,omitempty"`
	PickupAt    *time.Time `json:"pickupTime,omitempty" bson:"pickupTime,omitempty"`
	CompletedAt *time.Time `json:"completedTime,omitempty" bson:"completedTime,omitempty"`
	CancelledAt *time.Time `json:"cancelledTime,omitempty" bson:"cancelledTime,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`

	// Shared-ride fields. Invariant: CurrentPassengers <= MaxPassengers.
	MaxPassengers     int               `json:"maxPassengers,omitempty" bson:"maxPassengers,omitempty"`
	CurrentPassengers int               `json:"currentPassengers,omitempty" bson:"currentPassengers,omitempty"`
	SharedPassengers  []SharedPassenger `json:"sharedRidePassengers,omitempty" bson:"sharedRidePassengers,omitempty"`

	// Original client payload for tolerant-ingestion ride types.
	RawPayload map[string]any `json:"rawPayload,omitempty" bson:"rawPayload,omitempty"`

	// Distance from a reference point, populated by nearby searches only.
	Distance float64 `json:"distance,omitempty" bson:"-"`
}

// Coordinate reports the ride's pickup point for nearby searches.
func (r *Ride) Coordinate() (lat, lon float64, ok bool) {
	if r.Pickup == nil {
		return 0, 0, false
	}
	return r.Pickup.Latitude, r.Pickup.Longitude, true
}

// Coordinate reports the user's last known position. Only drivers that
// have reported a location qualify.
func (u *User) Coordinate() (lat, lon float64, ok bool) {
	if u.CurrentLocation == nil {
		return 0, 0, false
	}
	return u.CurrentLocation.Latitude, u.CurrentLocation.Longitude, true
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID                 string        `json:"id" bson:"_id"`
	RideID             string        `json:"rideId" bson:"rideId"`
	PassengerID        string        `json:"passengerId" bson:"passengerId"`
	DriverID           string        `json:"driverId,omitempty" bson:"driverId,omitempty"`
	BookingNumber      string        `json:"bookingNumber" bson:"bookingNumber"`
	Status             BookingStatus `json:"status" bson:"status"`
	BookingType        string        `json:"bookingType" bson:"bookingType"`
	CancellationReason string        `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CancelledBy        string        `json:"cancelledBy,omitempty" bson:"cancelledBy,omitempty"`
	CancelledAt        *time.Time    `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CompletedAt        *time.Time    `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CreatedAt          time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt" bson:"updatedAt"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID              string        `json:"id" bson:"_id"`
	RideID          string        `json:"rideId" bson:"rideId"`
	PassengerID     string        `json:"passengerId" bson:"passengerId"`
	DriverID        string        `json:"driverId,omitempty" bson:"driverId,omitempty"`
	Amount          float64       `json:"amount" bson:"amount"`
	Currency        string        `json:"currency" bson:"currency"`
	Method          string        `json:"method" bson:"method"`
	Status          PaymentStatus `json:"status" bson:"status"`
	TransactionID   string        `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	PaymentIntentID string        `json:"stripePaymentIntentId,omitempty" bson:"stripePaymentIntentId,omitempty"`
	RefundAmount    float64       `json:"refundAmount,omitempty" bson:"refundAmount,omitempty"`
	RefundReason    string        `json:"refundReason,omitempty" bson:"refundReason,omitempty"`
	FailureReason   string        `json:"failureReason,omitempty" bson:"failureReason,omitempty"`
	PaidAt          *time.Time    `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	RefundedAt      *time.Time    `json:"refundedAt,omitempty" bson:"refundedAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt" bson:"updatedAt"`
}

type Vehicle struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Price       string    `json:"price" bson:"price"`
	Passengers  int       `json:"passengers" bson:"passengers"`
	Luggage     int       `json:"luggage" bson:"luggage"`
	HandCarry   int       `json:"handCarry" bson:"handCarry"`
	Image       string    `json:"image" bson:"image"`
	Features    []string  `json:"features" bson:"features"`
	Status      string    `json:"status" bson:"status"` // active or deleted (soft delete)
	IsAvailable bool      `json:"isAvailable" bson:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// SeatBooking is one passenger's reservation on a shared-ride listing.
type SeatBooking struct {
	ID             string    `json:"id" bson:"id"`
	RideID         string    `json:"rideId" bson:"rideId"`
	PassengerName  string    `json:"passengerName" bson:"passengerName"`
	PassengerPhone string    `json:"passengerPhone" bson:"passengerPhone"`
	SeatsBooked    int       `json:"seatsBooked" bson:"seatsBooked"`
	Status         string    `json:"status" bson:"status"`
	BookingDate    time.Time `json:"bookingDate" bson:"bookingDate"`
}

// SharedRide is a multi-seat listing that passengers book seats on.
/// Invariant: 0 <= AvailableSeats <= TotalSeats. Revision guards
// concurrent seat bookings (compare-and-set on writes).
type SharedRide struct {
	ID             string         `json:"id" bson:"_id"`
	DriverName     string         `json:"driverName" bson:"driverName"`
	DriverImage    string         `json:"driverImage" bson:"driverImage"`
	Vehicle        string         `json:"vehicle" bson:"vehicle"`
	PickupLocation string         `json:"pickupLocation" bson:"pickupLocation"`
	Destination    string         `json:"destinationLocation" bson:"destinationLocation"`
	Time           string         `json:"time" bson:"time"`
	Duration       string         `json:"duration" bson:"duration"`
	Passengers     string         `json:"passengers" bson:"passengers"`
	Luggage        string         `json:"luggage" bson:"luggage"`
	HandCarry      string         `json:"handCarry" bson:"handCarry"`
	TotalSeats     int            `json:"totalSeats" bson:"totalSeats"`
	AvailableSeats int            `json:"availableSeats" bson:"availableSeats"`
	Price          string         `json:"price" bson:"price"`
	Frequency      string         `json:"frequency" bson:"frequency"`
	Status         string         `json:"status" bson:"status"`
	Bookings       []SeatBooking  `json:"bookings" bson:"bookings"`
	PickupDate     *time.Time     `json:"pickupDate,omitempty" bson:"pickupDate,omitempty"`
	PostedDate     time.Time      `json:"postedDate" bson:"postedDate"`
	RawPayload     map[string]any `json:"rawPayload,omitempty" bson:"rawPayload,omitempty"`
	Revision       int64          `json:"-" bson:"revision"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// BookedSeats sums seats across the listing's booking records.
func (s *SharedRide) BookedSeats() int {
	total := 0
	for _, b := range s.Bookings {
		total += b.SeatsBooked
	}
	return total
}

// Rates is the flat per-km pricing configuration, kept as a single
// settings document.
type Rates struct {
	RatePerKm    float64   `json:"ratePerKm" bson:"ratePerKm"`
	RateLKRPerKm float64   `json:"rateLKRPerKm" bson:"rateLKRPerKm"`
	ExchangeRate float64   `json:"exchangeRate" bson:"exchangeRate"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

type Review struct {
	ID        string         `json:"id" bson:"_id"`
	RideID    string         `json:"rideId,omitempty" bson:"rideId,omitempty"`
	Rating    int            `json:"rating,omitempty" bson:"rating,omitempty"`
	Comment   string         `json:"comment,omitempty" bson:"comment,omitempty"`
	Payload   map[string]any `json:"payload,omitempty" bson:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
}

// PersonalRide is a loosely-shaped booking kept in its own collection.
// Location values may arrive as strings or nested objects, so they stay
// untyped; the raw payload is preserved for auditing.
type PersonalRide struct {
	ID          string         `json:"id" bson:"_id"`
	RideType    RideType       `json:"rideType" bson:"rideType"`
	PassengerID string         `json:"passengerId,omitempty" bson:"passengerId,omitempty"`
	Pickup      any            `json:"pickupLocation,omitempty" bson:"pickupLocation,omitempty"`
	Destination any            `json:"destination,omitempty" bson:"destination,omitempty"`
	Notes       string         `json:"notes,omitempty" bson:"notes,omitempty"`
	RawPayload  map[string]any `json:"rawPayload,omitempty" bson:"rawPayload,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// DriverEvent is the driver-location message shipped through Kafka.
type DriverEvent struct {
	DriverID string   `json:"driver_id"`
	Location GeoPoint `json:"location"`
	IsOnline bool     `json:"is_online"`
	Rating   float64  `json:"rating,omitempty"`
}

// RideEvent is a lifecycle event published when a ride changes state.
type RideEvent struct {
	RideID   string     `json:"ride_id"`
	Status   RideStatus `json:"status"`
	DriverID string     `json:"driver_id,omitempty"`
	At       time.Time  `json:"at"`
}
