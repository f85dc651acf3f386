package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/store"
)

type vehicleRequest struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Passengers  int      `json:"passengers"`
	Luggage     int      `json:"luggage"`
	HandCarry   int      `json:"handCarry"`
	Image       string   `json:"image"`
	Features    []string `json:"features"`
	IsAvailable *bool    `json:"isAvailable"`
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	now := time.Now()
	v := &models.Vehicle{
		ID:          store.NewID(),
		Name:        req.Name,
		Price:       req.Price,
		Passengers:  req.Passengers,
		Luggage:     req.Luggage,
		HandCarry:   req.HandCarry,
		Image:       req.Image,
		Features:    req.Features,
		Status:      "active",
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.IsAvailable != nil {
		v.IsAvailable = *req.IsAvailable
	}
	if err := s.store.Vehicles.Create(r.Context(), v); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusCreated, "Vehicle created", map[string]any{"vehicle": v})
}

// handleListVehicles returns non-deleted vehicles.
func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.Vehicles.List(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	active := make([]*models.Vehicle, 0, len(all))
	for _, v := range all {
		if v.Status != "deleted" {
			active = append(active, v)
		}
	}
	respondOK(w, http.StatusOK, "", map[string]any{"vehicles": active, "count": len(active)})
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.Vehicles.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if v.Status == "deleted" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"vehicle": v})
}

func (s *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	v, err := s.store.Vehicles.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if req.Name != "" {
		v.Name = req.Name
	}
	if req.Price != "" {
		v.Price = req.Price
	}
	if req.Passengers > 0 {
		v.Passengers = req.Passengers
	}
	if req.Luggage > 0 {
		v.Luggage = req.Luggage
	}
	if req.HandCarry > 0 {
		v.HandCarry = req.HandCarry
	}
	if req.Image != "" {
		v.Image = req.Image
	}
	if req.Features != nil {
		v.Features = req.Features
	}
	if req.IsAvailable != nil {
		v.IsAvailable = *req.IsAvailable
	}
	v.UpdatedAt = time.Now()

	if err := s.store.Vehicles.Put(r.Context(), v); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Vehicle updated", map[string]any{"vehicle": v})
}

// handleDeleteVehicle soft-deletes so historical rides keep their
// vehicle reference.
func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.Vehicles.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	v.Status = "deleted"
	v.IsAvailable = false
	v.UpdatedAt = time.Now()
	if err := s.store.Vehicles.Put(r.Context(), v); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Vehicle deleted", nil)
}
