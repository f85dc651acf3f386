// Package httpapi exposes the REST and WebSocket surface of the
// backend. Every JSON response uses the {success, message, data}
// envelope.
package httpapi

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/taxi-backend/internal/auth"
	"github.com/example/taxi-backend/internal/dispatch"
	"github.com/example/taxi-backend/internal/ingest"
	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/payments"
	"github.com/example/taxi-backend/internal/ratelimit"
	"github.com/example/taxi-backend/internal/rides"
	"github.com/example/taxi-backend/internal/sharedrides"
	"github.com/example/taxi-backend/internal/store"
)

type Server struct {
	store    *store.Store
	rides    *rides.Service
	shared   *sharedrides.Service
	payments *payments.Service
	tokens   *auth.TokenService
	verifier auth.Verifier
	limiter  ratelimit.Limiter
	registry *dispatch.WSRegistry
	events   ingest.Publisher
	logger   *slog.Logger

	uploadDir     string
	webhookSecret string

	mux *mux.Router
}

// Deps bundles everything the server needs. Optional fields may be nil.
type Deps struct {
	Store    *store.Store
	Rides    *rides.Service
	Shared   *sharedrides.Service
	Payments *payments.Service
	Tokens   *auth.TokenService
	Verifier auth.Verifier
	Limiter  ratelimit.Limiter
	Registry *dispatch.WSRegistry
	Events   ingest.Publisher
	Logger   *slog.Logger

	UploadDir     string
	WebhookSecret string
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:         d.Store,
		rides:         d.Rides,
		shared:        d.Shared,
		payments:      d.Payments,
		tokens:        d.Tokens,
		verifier:      d.Verifier,
		limiter:       d.Limiter,
		registry:      d.Registry,
		events:        d.Events,
		logger:        d.Logger,
		uploadDir:     d.UploadDir,
		webhookSecret: d.WebhookSecret,
		mux:           mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.Use(s.recoverMiddleware)
	s.mux.Use(s.requestIDMiddleware)
	s.mux.Use(s.observabilityMiddleware)

	s.mux.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	s.mux.HandleFunc("/ws/drivers/{driver_id}", s.handleDriverWS)

	// Webhook is verified by signature, not bearer token.
	s.mux.HandleFunc("/api/payments/webhook", s.handlePaymentWebhook).Methods("POST")

	// Auth endpoints sit outside the token check but still count
	// against the per-IP budget.
	s.mux.Handle("/api/auth/register", s.rateLimitMiddleware(http.HandlerFunc(s.handleRegister))).Methods("POST")
	s.mux.Handle("/api/auth/login", s.rateLimitMiddleware(http.HandlerFunc(s.handleLogin))).Methods("POST")

	api := s.mux.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.Use(s.authMiddleware)

	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods("POST")

	anyUser := s.requireRole(models.RolePassenger, models.RoleDriver)
	driverOnly := s.requireRole(models.RoleDriver)
	adminOnly := s.requireRole()

	r := api.PathPrefix("/rides").Subrouter()
	r.Use(anyUser)
	r.HandleFunc("", s.handleCreateRide).Methods("POST")
	r.HandleFunc("", s.handleListRides).Methods("GET")
	r.HandleFunc("/pending", s.handlePendingRides).Methods("GET")
	r.HandleFunc("/shared/matches", s.handleSharedMatches).Methods("GET")
	r.HandleFunc("/{id}", s.handleGetRide).Methods("GET")
	r.HandleFunc("/{id}", s.handleDeleteRide).Methods("DELETE")
	r.HandleFunc("/{id}/accept", s.handleAcceptRide).Methods("POST")
	r.HandleFunc("/{id}/start", s.handleStartRide).Methods("POST")
	r.HandleFunc("/{id}/complete", s.handleCompleteRide).Methods("POST")
	r.HandleFunc("/{id}/cancel", s.handleCancelRide).Methods("POST")
	r.HandleFunc("/{id}/rate", s.handleRateRide).Methods("POST")
	r.HandleFunc("/{id}/join", s.handleJoinRide).Methods("POST")

	sr := api.PathPrefix("/shared-rides").Subrouter()
	sr.Use(anyUser)
	sr.HandleFunc("", s.handleCreateSharedRide).Methods("POST")
	sr.HandleFunc("", s.handleListSharedRides).Methods("GET")
	sr.HandleFunc("/search", s.handleSearchSharedRides).Methods("GET")
	sr.HandleFunc("/{id}", s.handleGetSharedRide).Methods("GET")
	sr.HandleFunc("/{id}", s.handleUpdateSharedRide).Methods("PUT")
	sr.HandleFunc("/{id}", s.handleDeleteSharedRide).Methods("DELETE")
	sr.HandleFunc("/{id}/book", s.handleBookSeat).Methods("POST")

	v := api.PathPrefix("/vehicles").Subrouter()
	v.HandleFunc("", s.handleListVehicles).Methods("GET")
	v.HandleFunc("/{id}", s.handleGetVehicle).Methods("GET")
	v.Handle("", adminOnly(http.HandlerFunc(s.handleCreateVehicle))).Methods("POST")
	v.Handle("/{id}", adminOnly(http.HandlerFunc(s.handleUpdateVehicle))).Methods("PUT")
	v.Handle("/{id}", adminOnly(http.HandlerFunc(s.handleDeleteVehicle))).Methods("DELETE")

	d := api.PathPrefix("/drivers").Subrouter()
	d.HandleFunc("", s.handleListDrivers).Methods("GET")
	d.HandleFunc("/register", s.handleRegisterDriver).Methods("POST")
	d.HandleFunc("/{id}", s.handleGetDriver).Methods("GET")
	d.Handle("/{id}/location", driverOnly(http.HandlerFunc(s.handleDriverLocation))).Methods("PUT")
	d.Handle("/{id}/status", driverOnly(http.HandlerFunc(s.handleDriverStatus))).Methods("PUT")

	u := api.PathPrefix("/users").Subrouter()
	u.Use(anyUser)
	u.HandleFunc("/me", s.handleProfile).Methods("GET")
	u.HandleFunc("/me", s.handleUpdateProfile).Methods("PUT")
	u.HandleFunc("/me/picture", s.handleUploadPicture).Methods("POST")
	u.HandleFunc("/{id}/stats", s.handleUserStats).Methods("GET")
	u.HandleFunc("/{id}/deactivate", s.handleDeactivate).Methods("POST")
	u.HandleFunc("/{id}/reactivate", s.handleReactivate).Methods("POST")

	p := api.PathPrefix("/payments").Subrouter()
	p.Use(anyUser)
	p.HandleFunc("/calculate-fare", s.handleCalculateFare).Methods("POST")
	p.HandleFunc("/create-intent", s.handleCreateIntent).Methods("POST")
	p.HandleFunc("/history", s.handlePaymentHistory).Methods("GET")
	p.HandleFunc("/{id}/confirm", s.handleConfirmPayment).Methods("POST")
	p.HandleFunc("/{id}/refund", s.handleRefundPayment).Methods("POST")

	api.HandleFunc("/reviews", s.handleCreateReview).Methods("POST")
	api.HandleFunc("/reviews", s.handleListReviews).Methods("GET")
	api.Handle("/reviews/{id}", adminOnly(http.HandlerFunc(s.handleDeleteReview))).Methods("DELETE")

	api.HandleFunc("/rates", s.handleGetRates).Methods("GET")
	api.Handle("/rates", adminOnly(http.HandlerFunc(s.handlePutRates))).Methods("PUT")
	api.Handle("/rates", adminOnly(http.HandlerFunc(s.handleDeleteRates))).Methods("DELETE")

	api.HandleFunc("/private-rides", s.handleCreatePrivateRide).Methods("POST")
	api.HandleFunc("/private-rides", s.handleListPrivateRides).Methods("GET")

	api.HandleFunc("/personal-rides", s.handleCreatePersonalRide).Methods("POST")
	api.HandleFunc("/personal-rides", s.handleListPersonalRides).Methods("GET")
	api.HandleFunc("/personal-rides/{id}", s.handleUpdatePersonalRide).Methods("PUT")
	api.HandleFunc("/personal-rides/{id}", s.handleDeletePersonalRide).Methods("DELETE")

	b := api.PathPrefix("/bookings").Subrouter()
	b.Use(anyUser)
	b.HandleFunc("/{id}", s.handleGetBooking).Methods("GET")
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		respondError(w, http.StatusBadRequest, "upgrade failed")
		return
	}
	session := s.registry.Add(driverID, conn)
	s.logger.Info("driver connected", "driver_id", driverID)

	// Reader loop keeps the connection alive and removes the session on
	// close.
	go func() {
		defer func() {
			s.registry.Remove(driverID, session)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func cleanUploadName(name string) string {
	return filepath.Base(filepath.Clean(name))
}
