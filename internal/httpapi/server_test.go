package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/taxi-backend/internal/auth"
	"github.com/example/taxi-backend/internal/dispatch"
	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/payments"
	"github.com/example/taxi-backend/internal/ratelimit"
	"github.com/example/taxi-backend/internal/rides"
	"github.com/example/taxi-backend/internal/sharedrides"
	"github.com/example/taxi-backend/internal/store"
)

type testEnv struct {
	server *Server
	store  *store.Store
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	logger := slog.Default()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	registry := dispatch.NewWSRegistry(logger)

	srv := NewServer(Deps{
		Store:    st,
		Rides:    rides.NewService(st, nil, registry, logger),
		Shared:   sharedrides.NewService(st, logger),
		Payments: payments.NewService(st, nil, logger),
		Tokens:   tokens,
		Verifier: tokens,
		Limiter:  ratelimit.NewMemoryLimiter(time.Minute, 1000),
		Registry: registry,
		Logger:   logger,
		UploadDir: t.TempDir(),
	})
	return &testEnv{server: srv, store: st, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, role models.Role) string {
	t.Helper()
	u := &models.User{
		ID: store.NewID(), Name: "tester", PhoneNumber: "+9477" + string(role),
		Role: role, IsActive: true, CreatedAt: time.Now(),
	}
	if err := e.store.Users.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	token, err := e.tokens.Issue(u.ID, role)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/rides", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatal("success should be false")
	}
}

func TestCreateAndFetchRide(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)

	rec := e.do(t, http.MethodPost, "/api/rides", token, map[string]any{
		"passengerName":  "Nimal",
		"passengerPhone": "+94770001111",
		"pickupLocation": map[string]float64{"latitude": 6.9271, "longitude": 79.8612},
		"destination":    map[string]float64{"latitude": 6.9350, "longitude": 79.8500},
		"rideType":       "standard",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Message != "Ride created" {
		t.Fatalf("envelope = %+v", env)
	}

	var created struct {
		Ride models.Ride `json:"ride"`
	}
	raw, _ := json.Marshal(env.Data)
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatal(err)
	}
	if created.Ride.Status != models.RideStatusPending {
		t.Fatalf("status = %s", created.Ride.Status)
	}

	rec = e.do(t, http.MethodGet, "/api/rides/"+created.Ride.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch status = %d", rec.Code)
	}
}

func TestCreateRideValidation(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)

	rec := e.do(t, http.MethodPost, "/api/rides", token, map[string]any{"passengerName": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBookSeatEnvelopeMessages(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)

	rec := e.do(t, http.MethodPost, "/api/shared-rides", token, map[string]any{
		"pickupLocation":      "Colombo Fort",
		"destinationLocation": "Kandy",
		"totalSeats":          1,
		"driverName":          "Saman",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var created struct {
		SharedRide models.SharedRide `json:"sharedRide"`
	}
	raw, _ := json.Marshal(env.Data)
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatal(err)
	}

	path := fmt.Sprintf("/api/shared-rides/%s/book", created.SharedRide.ID)

	// Two seats on a one-seat listing.
	rec = e.do(t, http.MethodPost, path, token, map[string]any{"passengerName": "a", "seats": 2})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overbook status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "No seats available" {
		t.Fatalf("message = %q", env.Message)
	}

	// One seat succeeds.
	rec = e.do(t, http.MethodPost, path, token, map[string]any{"passengerName": "a", "seats": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("book status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestCalculateFare(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)

	rec := e.do(t, http.MethodPost, "/api/payments/calculate-fare", token, map[string]any{
		"distance": 10, "duration": 20, "rideType": "standard",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(env.Data)
	var data struct {
		Fare struct {
			DistanceFare float64 `json:"distanceFare"`
			TimeFare     float64 `json:"timeFare"`
			Subtotal     float64 `json:"subtotal"`
			Tax          float64 `json:"tax"`
			TotalFare    float64 `json:"totalFare"`
		} `json:"fare"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatal(err)
	}
	if data.Fare.DistanceFare != 12.00 || data.Fare.TimeFare != 3.00 ||
		data.Fare.Subtotal != 17.50 || data.Fare.Tax != 1.40 || data.Fare.TotalFare != 19.90 {
		t.Fatalf("fare = %+v", data.Fare)
	}
}

func TestVehicleAdminOnly(t *testing.T) {
	e := newTestEnv(t)
	passenger := e.token(t, models.RolePassenger)

	rec := e.do(t, http.MethodPost, "/api/vehicles", passenger, map[string]any{"name": "Sedan"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	admin := e.token(t, models.RoleAdmin)
	rec = e.do(t, http.MethodPost, "/api/vehicles", admin, map[string]any{"name": "Sedan", "passengers": 4})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestDeactivatedAccountRejected(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	u := &models.User{ID: store.NewID(), Name: "gone", PhoneNumber: "+94770009999", Role: models.RolePassenger, IsActive: false}
	if err := e.store.Users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	token, err := e.tokens.Issue(u.ID, u.Role)
	if err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodGet, "/api/rides", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestPrivateRideTolerantIngestion(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)

	// All fields nested, none top-level.
	rec := e.do(t, http.MethodPost, "/api/private-rides", token, map[string]any{
		"passenger": map[string]any{"fullName": "Kamala", "phone": "+94770005555"},
		"pickup": map[string]any{
			"location": map[string]any{"latitude": 6.9, "longitude": 79.8},
			"address":  "Fort Station",
		},
		"destination": map[string]any{
			"location": map[string]any{"latitude": 7.29, "longitude": 80.63},
			"address":  "Kandy",
		},
		"extraClientField": "kept",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(env.Data)
	var data struct {
		Ride models.Ride `json:"ride"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatal(err)
	}
	if data.Ride.RideType != models.RideTypePrivate {
		t.Fatalf("rideType = %s", data.Ride.RideType)
	}
	if data.Ride.PickupAddress != "Fort Station" {
		t.Fatalf("pickupAddress = %q", data.Ride.PickupAddress)
	}
	if data.Ride.RawPayload["extraClientField"] != "kept" {
		t.Fatalf("rawPayload = %v", data.Ride.RawPayload)
	}
}

func TestPrivateRideMissingFields(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)

	rec := e.do(t, http.MethodPost, "/api/private-rides", token, map[string]any{
		"passenger": map[string]any{"name": "NoPhone"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "Required fields missing" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestPersonalRideStoresWithoutPassenger(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)

	rec := e.do(t, http.MethodPost, "/api/personal-rides", token, map[string]any{
		"pickup":      map[string]any{"location": "Galle Road"},
		"destination": "Airport",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/api/personal-rides", token, nil)
	env := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(env.Data)
	var data struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatal(err)
	}
	if data.Count != 1 {
		t.Fatalf("count = %d", data.Count)
	}
}

func TestRatesLifecycle(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, models.RoleAdmin)

	rec := e.do(t, http.MethodGet, "/api/rates", admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty rates status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPut, "/api/rates", admin, map[string]any{"ratePerKm": 1.5, "exchangeRate": 300})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/api/rates", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodDelete, "/api/rates", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t)
	e.server.limiter = ratelimit.NewMemoryLimiter(time.Minute, 2)
	token := e.token(t, models.RolePassenger)

	for i := 0; i < 2; i++ {
		if rec := e.do(t, http.MethodGet, "/api/rides", token, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := e.do(t, http.MethodGet, "/api/rides", token, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Amara", "phoneNumber": "+94770007777",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(env.Data)
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatal(err)
	}
	if data.Token == "" {
		t.Fatal("no token issued")
	}

	// Duplicate phone.
	rec = e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Amara", "phoneNumber": "+94770007777",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("dup register status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"phoneNumber": "+94770007777"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}

	// The issued token works against the API.
	rec = e.do(t, http.MethodGet, "/api/users/me", data.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRatePendingRideRejected(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)
	ctx := context.Background()

	ride := &models.Ride{ID: store.NewID(), Status: models.RideStatusPending, CreatedAt: time.Now()}
	if err := e.store.Rides.Create(ctx, ride); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/api/rides/"+ride.ID+"/rate", token, map[string]any{"rating": 5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.Success {
		t.Fatal("success should be false")
	}
}

func TestCompleteRideStoresFare(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)
	ctx := context.Background()

	ride := &models.Ride{ID: store.NewID(), Status: models.RideStatusInProgress, Fare: 19.90, CreatedAt: time.Now()}
	if err := e.store.Rides.Create(ctx, ride); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/api/rides/"+ride.ID+"/complete", token, map[string]any{
		"actualDistance": 12.5, "actualDuration": 28, "fare": 24.30,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}

	stored, err := e.store.Rides.Get(ctx, ride.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Fare != 24.30 {
		t.Fatalf("fare = %v, want 24.30", stored.Fare)
	}
	if stored.ActualDistance != 12.5 || stored.ActualDuration != 28 {
		t.Fatalf("actuals = %v, %v", stored.ActualDistance, stored.ActualDuration)
	}
}

func TestAuthEndpointsRateLimited(t *testing.T) {
	e := newTestEnv(t)
	e.server.limiter = ratelimit.NewMemoryLimiter(time.Minute, 2)

	for i := 0; i < 2; i++ {
		rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"phoneNumber": "+94770000000"})
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d throttled too early", i+1)
		}
	}
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Flood", "phoneNumber": "+94770008888",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestCancelCompletedRideRejected(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, models.RolePassenger)
	ctx := context.Background()

	ride := &models.Ride{ID: store.NewID(), Status: models.RideStatusCompleted, CreatedAt: time.Now()}
	if err := e.store.Rides.Create(ctx, ride); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/api/rides/"+ride.ID+"/cancel", token, map[string]any{"reason": "late"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Success {
		t.Fatal("success should be false")
	}
}
