package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/observability"
	"github.com/example/taxi-backend/internal/store"
)

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rev := &models.Review{
		ID:        store.NewID(),
		Payload:   raw,
		CreatedAt: time.Now(),
	}
	if v, ok := raw["rideId"].(string); ok {
		rev.RideID = v
	}
	if v, ok := raw["rating"].(float64); ok {
		rev.Rating = int(v)
	}
	if v, ok := raw["comment"].(string); ok {
		rev.Comment = v
	}

	if err := s.store.Reviews.Create(r.Context(), rev); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusCreated, "Review submitted", map[string]any{"review": rev})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.store.Reviews.List(r.Context(), q.Get("rideId"), queryInt(q.Get("limit"), 50))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"reviews": list, "count": len(list)})
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reviews.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Review deleted", nil)
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.store.Rates.Get(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "rates not configured")
			return
		}
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"rates": rates})
}

func (s *Server) handlePutRates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RatePerKm    float64 `json:"ratePerKm"`
		RateLKRPerKm float64 `json:"rateLKRPerKm"`
		ExchangeRate float64 `json:"exchangeRate"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RatePerKm <= 0 {
		respondError(w, http.StatusBadRequest, "ratePerKm must be positive")
		return
	}

	rates := &models.Rates{
		RatePerKm:    req.RatePerKm,
		RateLKRPerKm: req.RateLKRPerKm,
		ExchangeRate: req.ExchangeRate,
		UpdatedAt:    time.Now(),
	}
	if err := s.store.Rates.Put(r.Context(), rates); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Rates updated", map[string]any{"rates": rates})
}

func (s *Server) handleDeleteRates(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Rates.Delete(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Rates deleted", nil)
}

// handleCreatePrivateRide ingests a loosely-shaped private ride payload.
// Field locations are defined by privateRideRules.
func (s *Server) handleCreatePrivateRide(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fields := extract(raw, privateRideRules)
	name := stringField(fields, "passengerName")
	phone := stringField(fields, "passengerPhone")
	pickup := toGeoPoint(fields["pickupLocation"])
	dest := toGeoPoint(fields["destination"])
	if name == "" || phone == "" || pickup == nil || dest == nil {
		respondError(w, http.StatusBadRequest, "Required fields missing")
		return
	}

	res, err := s.rides.CreatePrivate(r.Context(), name, phone, pickup, dest,
		stringField(fields, "pickupAddress"),
		stringField(fields, "destinationAddress"),
		intField(fields, "passengers"),
		stringField(fields, "notes"),
		raw)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusCreated, "Private ride created", res)
}

func (s *Server) handleListPrivateRides(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Rides.List(r.Context(), store.RideFilter{
		RideType: models.RideTypePrivate,
		Limit:    queryInt(r.URL.Query().Get("limit"), 50),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"rides": list, "count": len(list)})
}

// handleCreatePersonalRide stores whatever shape the client sent,
// resolving the passenger when a phone can be found. A missing passenger
// does not fail the request.
func (s *Server) handleCreatePersonalRide(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fields := extract(raw, personalRideRules)
	now := time.Now()
	p := &models.PersonalRide{
		ID:          store.NewID(),
		RideType:    models.RideTypePersonal,
		PassengerID: stringField(fields, "passengerId"),
		Pickup:      fields["pickupLocation"],
		Destination: fields["destination"],
		Notes:       stringField(fields, "notes"),
		RawPayload:  raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var passenger *models.User
	if phone := stringField(fields, "passengerPhone"); phone != "" {
		u, err := s.store.Users.FindByPhone(r.Context(), phone)
		switch {
		case err == nil:
			passenger = u
		case errors.Is(err, store.ErrNotFound):
			if name := stringField(fields, "passengerName"); name != "" {
				u := &models.User{
					ID: store.NewID(), Name: name, PhoneNumber: phone,
					Role: models.RolePassenger, IsActive: true,
					CreatedAt: now, UpdatedAt: now,
				}
				if err := s.store.Users.Create(r.Context(), u); err == nil {
					passenger = u
				} else {
					s.logger.Warn("passenger create failed, storing ride anyway", "error", err)
				}
			}
		default:
			s.logger.Warn("passenger lookup failed, storing ride anyway", "error", err)
		}
	}
	if passenger != nil {
		p.PassengerID = passenger.ID
	}

	if err := s.store.PersonalRides.Create(r.Context(), p); err != nil {
		respondServiceError(w, err)
		return
	}

	// Companion booking record is best effort.
	var booking *models.Booking
	if passenger != nil {
		booking = &models.Booking{
			ID:          store.NewID(),
			RideID:      p.ID,
			PassengerID: passenger.ID,
			Status:      models.BookingConfirmed,
			BookingType: "immediate",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Bookings.Create(r.Context(), booking); err != nil {
			observability.CascadeFailuresTotal.Inc()
			s.logger.Warn("personal ride stored but booking write failed", "ride_id", p.ID, "error", err)
			booking = nil
		}
	}

	respondOK(w, http.StatusCreated, "Personal booking created", map[string]any{
		"personalBooking": p,
		"bookingRecord":   booking,
		"passenger":       passenger,
	})
}

func (s *Server) handleListPersonalRides(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.PersonalRides.List(r.Context(), queryInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"bookings": list, "count": len(list)})
}

func (s *Server) handleUpdatePersonalRide(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.store.PersonalRides.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	fields := extract(raw, personalRideRules)
	if v, ok := fields["pickupLocation"]; ok {
		p.Pickup = v
	}
	if v, ok := fields["destination"]; ok {
		p.Destination = v
	}
	if v := stringField(fields, "notes"); v != "" {
		p.Notes = v
	}
	for k, v := range raw {
		if p.RawPayload == nil {
			p.RawPayload = map[string]any{}
		}
		p.RawPayload[k] = v
	}
	p.UpdatedAt = time.Now()

	if err := s.store.PersonalRides.Put(r.Context(), p); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Personal booking updated", map[string]any{"booking": p})
}

func (s *Server) handleDeletePersonalRide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.PersonalRides.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	// Orphaned booking cleanup, best effort.
	if b, err := s.store.Bookings.FindByRide(r.Context(), id); err == nil {
		if err := s.store.Bookings.Delete(r.Context(), b.ID); err != nil {
			observability.CascadeFailuresTotal.Inc()
			s.logger.Warn("personal ride deleted but booking cleanup failed", "ride_id", id, "error", err)
		}
	}
	respondOK(w, http.StatusOK, "Personal booking deleted", nil)
}

// toGeoPoint coerces tolerant-ingestion location values into a GeoPoint
// when they carry latitude/longitude; other shapes return nil.
func toGeoPoint(v any) *models.GeoPoint {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	lat, latOK := m["latitude"].(float64)
	lon, lonOK := m["longitude"].(float64)
	if !latOK || !lonOK {
		return nil
	}
	return &models.GeoPoint{Latitude: lat, Longitude: lon}
}
