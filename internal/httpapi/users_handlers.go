package httpapi

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/taxi-backend/internal/auth"
	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/store"
)

type registerRequest struct {
	Name        string              `json:"name"`
	PhoneNumber string              `json:"phoneNumber"`
	Email       string              `json:"email"`
	Role        models.Role         `json:"role"`
	VehicleInfo *models.VehicleInfo `json:"vehicleInfo"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.register(w, r, "")
}

// handleRegisterDriver is the driver-app registration path; role is
// forced regardless of what the payload says.
func (s *Server) handleRegisterDriver(w http.ResponseWriter, r *http.Request) {
	s.register(w, r, models.RoleDriver)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, forceRole models.Role) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PhoneNumber == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name and phoneNumber are required")
		return
	}
	role := forceRole
	if role == "" {
		role = req.Role
	}
	if role == "" {
		role = models.RolePassenger
	}

	if _, err := s.store.Users.FindByPhone(r.Context(), req.PhoneNumber); err == nil {
		respondError(w, http.StatusConflict, "phone number already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		respondServiceError(w, err)
		return
	}

	now := time.Now()
	u := &models.User{
		ID:          store.NewID(),
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		Role:        role,
		IsActive:    true,
		VehicleInfo: req.VehicleInfo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Users.Create(r.Context(), u); err != nil {
		respondServiceError(w, err)
		return
	}

	data := map[string]any{"user": u}
	if s.tokens != nil {
		token, err := s.tokens.Issue(u.ID, u.Role)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		data["token"] = token
	}
	respondOK(w, http.StatusCreated, "Registered", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PhoneNumber == "" {
		respondError(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}

	u, err := s.store.Users.FindByPhone(r.Context(), req.PhoneNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "unknown phone number")
			return
		}
		respondServiceError(w, err)
		return
	}
	if !u.IsActive {
		respondError(w, http.StatusForbidden, "account is deactivated")
		return
	}

	data := map[string]any{"user": u}
	if s.tokens != nil {
		token, err := s.tokens.Issue(u.ID, u.Role)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		data["token"] = token
	}
	respondOK(w, http.StatusOK, "Logged in", data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok || s.tokens == nil {
		respondError(w, http.StatusUnauthorized, "cannot refresh")
		return
	}
	token, err := s.tokens.Issue(id.UserID, id.Role)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Token refreshed", map[string]any{"token": token})
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.DriverFilter{
		ActiveOnly: q.Get("active") == "true",
		Limit:      queryInt(q.Get("limit"), 50),
	}
	if v := q.Get("online"); v != "" {
		online := v == "true"
		f.Online = &online
	}
	list, err := s.store.Users.ListDrivers(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"drivers": list, "count": len(list)})
}

func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if u.Role != models.RoleDriver {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"driver": u})
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var req models.GeoPoint
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := mux.Vars(r)["id"]
	u, err := s.store.Users.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	now := time.Now()
	u.CurrentLocation = &models.DriverLocation{GeoPoint: req, UpdatedAt: now}
	u.UpdatedAt = now
	if err := s.store.Users.Put(r.Context(), u); err != nil {
		respondServiceError(w, err)
		return
	}

	if s.events != nil {
		ev := models.DriverEvent{DriverID: id, Location: req, IsOnline: u.IsOnline, Rating: u.Rating}
		if err := s.events.PublishDriverEvent(ev); err != nil {
			s.logger.Warn("driver event publish failed", "driver_id", id, "error", err)
		}
	}
	respondOK(w, http.StatusOK, "Location updated", nil)
}

func (s *Server) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsOnline *bool `json:"isOnline"`
	}
	if err := decodeBody(r, &req); err != nil || req.IsOnline == nil {
		respondError(w, http.StatusBadRequest, "isOnline is required")
		return
	}

	u, err := s.store.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	u.IsOnline = *req.IsOnline
	u.UpdatedAt = time.Now()
	if err := s.store.Users.Put(r.Context(), u); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Status updated", map[string]any{"driver": u})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	u, err := s.store.Users.Get(r.Context(), id.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"user": u})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string              `json:"name"`
		Email       string              `json:"email"`
		VehicleInfo *models.VehicleInfo `json:"vehicleInfo"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, _ := auth.FromContext(r.Context())
	u, err := s.store.Users.Get(r.Context(), id.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	if req.VehicleInfo != nil {
		u.VehicleInfo = req.VehicleInfo
	}
	u.UpdatedAt = time.Now()
	if err := s.store.Users.Put(r.Context(), u); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Profile updated", map[string]any{"user": u})
}

// handleUploadPicture stores a profile image under the upload dir and
// records its public path.
func (s *Server) handleUploadPicture(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("picture")
	if err != nil {
		respondError(w, http.StatusBadRequest, "picture file is required")
		return
	}
	defer file.Close()

	id, _ := auth.FromContext(r.Context())
	name := id.UserID + "_" + cleanUploadName(header.Filename)
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		respondServiceError(w, err)
		return
	}
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		respondServiceError(w, err)
		return
	}

	u, err := s.store.Users.Get(r.Context(), id.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	u.ProfilePicture = "/uploads/" + name
	u.UpdatedAt = time.Now()
	if err := s.store.Users.Put(r.Context(), u); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Picture uploaded", map[string]any{"profilePicture": u.ProfilePicture})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{
		"stats": map[string]any{
			"totalRides": u.TotalRides,
			"rating":     u.Rating,
			"isVerified": u.IsVerified,
			"memberFor":  time.Since(u.CreatedAt).Round(time.Hour).String(),
		},
	})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = decodeBody(r, &req)

	u, err := s.store.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	u.IsActive = false
	u.DeactivationReason = req.Reason
	u.UpdatedAt = time.Now()
	if err := s.store.Users.Put(r.Context(), u); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Account deactivated", nil)
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	u.IsActive = true
	u.DeactivationReason = ""
	u.UpdatedAt = time.Now()
	if err := s.store.Users.Put(r.Context(), u); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Account reactivated", map[string]any{"user": u})
}
