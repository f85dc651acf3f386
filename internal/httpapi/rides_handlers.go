package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/observability"
	"github.com/example/taxi-backend/internal/rides"
	"github.com/example/taxi-backend/internal/store"
)

type createRideRequest struct {
	PassengerName      string           `json:"passengerName"`
	PassengerPhone     string           `json:"passengerPhone"`
	Pickup             *models.GeoPoint `json:"pickupLocation"`
	Destination        *models.GeoPoint `json:"destination"`
	PickupAddress      string           `json:"pickupAddress"`
	DestinationAddress string           `json:"destinationAddress"`
	RideType           models.RideType  `json:"rideType"`
	PaymentMethod      string           `json:"paymentMethod"`
	Passengers         int              `json:"passengers"`
	MaxPassengers      int              `json:"maxPassengers"`
	Notes              string           `json:"notes"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PassengerPhone == "" || req.Pickup == nil || req.Destination == nil {
		respondError(w, http.StatusBadRequest, "passengerPhone, pickupLocation and destination are required")
		return
	}

	res, err := s.rides.Create(r.Context(), rides.CreateInput{
		PassengerName:  req.PassengerName,
		PassengerPhone: req.PassengerPhone,
		Pickup:         req.Pickup,
		Destination:    req.Destination,
		PickupAddress:  req.PickupAddress,
		DestAddress:    req.DestinationAddress,
		RideType:       req.RideType,
		PaymentMethod:  req.PaymentMethod,
		Passengers:     req.Passengers,
		MaxPassengers:  req.MaxPassengers,
		Notes:          req.Notes,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusCreated, "Ride created", res)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RideFilter{
		Status:   models.RideStatus(q.Get("status")),
		RideType: models.RideType(q.Get("rideType")),
		Limit:    queryInt(q.Get("limit"), 50),
	}
	list, err := s.store.Rides.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"rides": list, "count": len(list)})
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.store.Rides.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"ride": ride})
}

// handleDeleteRide removes a ride; the orphaned booking cleanup is best
// effort.
func (s *Server) handleDeleteRide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Rides.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	if b, err := s.store.Bookings.FindByRide(r.Context(), id); err == nil {
		if err := s.store.Bookings.Delete(r.Context(), b.ID); err != nil {
			observability.CascadeFailuresTotal.Inc()
			s.logger.Warn("ride deleted but booking cleanup failed", "ride_id", id, "error", err)
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		observability.CascadeFailuresTotal.Inc()
		s.logger.Warn("ride deleted but booking lookup failed", "ride_id", id, "error", err)
	}
	respondOK(w, http.StatusOK, "Ride deleted", nil)
}

func (s *Server) handlePendingRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("latitude"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("longitude"), 64)

	// Without coordinates this is a plain pending listing.
	if latErr != nil || lonErr != nil {
		list, err := s.store.Rides.Pending(r.Context())
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondOK(w, http.StatusOK, "", map[string]any{"rides": list, "count": len(list)})
		return
	}

	radius := queryFloat(q.Get("radius"), 5)
	list, err := s.rides.PendingNear(r.Context(), lat, lon, radius)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"rides": list, "count": len(list)})
}

func (s *Server) handleSharedMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("latitude"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("longitude"), 64)
	if latErr != nil || lonErr != nil {
		respondError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	radius := queryFloat(q.Get("radius"), 5)

	list, err := s.rides.FindSharedMatches(r.Context(), lat, lon, radius)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"rides": list, "count": len(list)})
}

func (s *Server) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverName  string `json:"driverName"`
		DriverPhone string `json:"driverPhone"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DriverPhone == "" {
		respondError(w, http.StatusBadRequest, "driverPhone is required")
		return
	}
	ride, err := s.rides.Accept(r.Context(), mux.Vars(r)["id"], req.DriverName, req.DriverPhone)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Ride accepted", map[string]any{"ride": ride})
}

func (s *Server) handleStartRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.rides.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Ride started", map[string]any{"ride": ride})
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActualDistance float64 `json:"actualDistance"`
		ActualDuration float64 `json:"actualDuration"`
		Fare           float64 `json:"fare"`
	}
	// Body is optional on completion.
	_ = decodeBody(r, &req)

	ride, err := s.rides.Complete(r.Context(), mux.Vars(r)["id"], req.ActualDistance, req.ActualDuration, req.Fare)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Ride completed", map[string]any{"ride": ride})
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason      string `json:"reason"`
		CancelledBy string `json:"cancelledBy"`
	}
	_ = decodeBody(r, &req)

	ride, err := s.rides.Cancel(r.Context(), mux.Vars(r)["id"], req.Reason, req.CancelledBy)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Ride cancelled", map[string]any{"ride": ride})
}

func (s *Server) handleRateRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ride, err := s.rides.Rate(r.Context(), mux.Vars(r)["id"], req.Rating, req.Feedback)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Ride rated", map[string]any{"ride": ride})
}

func (s *Server) handleJoinRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PassengerID string           `json:"passengerId"`
		Pickup      *models.GeoPoint `json:"pickupLocation"`
		Destination *models.GeoPoint `json:"destination"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PassengerID == "" {
		respondError(w, http.StatusBadRequest, "passengerId is required")
		return
	}
	ride, err := s.rides.JoinShared(r.Context(), mux.Vars(r)["id"], req.PassengerID, req.Pickup, req.Destination)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Joined shared ride", map[string]any{"ride": ride})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.Bookings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"booking": b})
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func queryFloat(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}
