package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/taxi-backend/internal/sharedrides"
)

type sharedRideRequest struct {
	DriverName     string         `json:"driverName"`
	DriverImage    string         `json:"driverImage"`
	Vehicle        string         `json:"vehicle"`
	PickupLocation string         `json:"pickupLocation"`
	Destination    string         `json:"destinationLocation"`
	Time           string         `json:"time"`
	Duration       string         `json:"duration"`
	Passengers     string         `json:"passengers"`
	Luggage        string         `json:"luggage"`
	HandCarry      string         `json:"handCarry"`
	TotalSeats     int            `json:"totalSeats"`
	Price          string         `json:"price"`
	Frequency      string         `json:"frequency"`
	PickupDate     *time.Time     `json:"pickupDate"`
	RawPayload     map[string]any `json:"rawPayload"`
}

func (s *Server) handleCreateSharedRide(w http.ResponseWriter, r *http.Request) {
	var req sharedRideRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PickupLocation == "" || req.Destination == "" || req.TotalSeats <= 0 {
		respondError(w, http.StatusBadRequest, "pickupLocation, destinationLocation and totalSeats are required")
		return
	}

	sr, err := s.shared.Create(r.Context(), sharedrides.CreateInput{
		DriverName:     req.DriverName,
		DriverImage:    req.DriverImage,
		Vehicle:        req.Vehicle,
		PickupLocation: req.PickupLocation,
		Destination:    req.Destination,
		Time:           req.Time,
		Duration:       req.Duration,
		Passengers:     req.Passengers,
		Luggage:        req.Luggage,
		HandCarry:      req.HandCarry,
		TotalSeats:     req.TotalSeats,
		Price:          req.Price,
		Frequency:      req.Frequency,
		PickupDate:     req.PickupDate,
		RawPayload:     req.RawPayload,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusCreated, "Shared ride posted", map[string]any{"sharedRide": sr})
}

func (s *Server) handleListSharedRides(w http.ResponseWriter, r *http.Request) {
	list, err := s.shared.List(r.Context(), queryInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"sharedRides": list, "count": len(list)})
}

func (s *Server) handleSearchSharedRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pickup := q.Get("pickup")
	if pickup == "" {
		respondError(w, http.StatusBadRequest, "pickup is required")
		return
	}
	list, err := s.shared.Search(r.Context(), pickup, queryInt(q.Get("limit"), 50))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"sharedRides": list, "count": len(list)})
}

func (s *Server) handleGetSharedRide(w http.ResponseWriter, r *http.Request) {
	sr, err := s.shared.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"sharedRide": sr})
}

// handleUpdateSharedRide replaces listing fields wholesale. Seat counts
// and bookings only change through the booking endpoint.
func (s *Server) handleUpdateSharedRide(w http.ResponseWriter, r *http.Request) {
	var req sharedRideRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sr, err := s.shared.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if req.DriverName != "" {
		sr.DriverName = req.DriverName
	}
	if req.Vehicle != "" {
		sr.Vehicle = req.Vehicle
	}
	if req.PickupLocation != "" {
		sr.PickupLocation = req.PickupLocation
	}
	if req.Destination != "" {
		sr.Destination = req.Destination
	}
	if req.Time != "" {
		sr.Time = req.Time
	}
	if req.Duration != "" {
		sr.Duration = req.Duration
	}
	if req.Price != "" {
		sr.Price = req.Price
	}
	if req.Frequency != "" {
		sr.Frequency = req.Frequency
	}
	if req.PickupDate != nil {
		sr.PickupDate = req.PickupDate
	}
	sr.UpdatedAt = time.Now()

	if err := s.store.SharedRides.Put(r.Context(), sr); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Shared ride updated", map[string]any{"sharedRide": sr})
}

func (s *Server) handleDeleteSharedRide(w http.ResponseWriter, r *http.Request) {
	if err := s.shared.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Shared ride deleted", nil)
}

func (s *Server) handleBookSeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PassengerName  string `json:"passengerName"`
		PassengerPhone string `json:"passengerPhone"`
		Seats          int    `json:"seats"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Seats == 0 {
		req.Seats = 1
	}

	sr, err := s.shared.BookSeat(r.Context(), sharedrides.BookSeatInput{
		ListingID:      mux.Vars(r)["id"],
		PassengerName:  req.PassengerName,
		PassengerPhone: req.PassengerPhone,
		Seats:          req.Seats,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Seat booked", map[string]any{"sharedRide": sr})
}
