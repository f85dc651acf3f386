package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/taxi-backend/internal/auth"
	"github.com/example/taxi-backend/internal/payments"
	"github.com/example/taxi-backend/internal/rides"
	"github.com/example/taxi-backend/internal/sharedrides"
	"github.com/example/taxi-backend/internal/store"
)

// envelope is the uniform response shape of every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondServiceError maps domain errors onto HTTP statuses and the
// envelope. Handlers call this for anything bubbling out of a service.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, sharedrides.ErrNoSeats):
		respondError(w, http.StatusBadRequest, "No seats available")
	case errors.Is(err, sharedrides.ErrNotActive):
		respondError(w, http.StatusBadRequest, "Listing is no longer active")
	case errors.Is(err, sharedrides.ErrBadSeatsReq),
		errors.Is(err, rides.ErrBadRating),
		errors.Is(err, rides.ErrNotShared):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rides.ErrInvalidTransition),
		errors.Is(err, rides.ErrRideFull):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payments.ErrAlreadyPaid):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "conflicting update, please retry")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		respondError(w, http.StatusUnauthorized, "invalid or expired token")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
