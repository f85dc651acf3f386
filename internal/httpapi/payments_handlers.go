package httpapi

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/taxi-backend/internal/auth"
	"github.com/example/taxi-backend/internal/fare"
	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/payments"
)

func (s *Server) handleCalculateFare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Distance float64         `json:"distance"`
		Duration float64         `json:"duration"`
		RideType models.RideType `json:"rideType"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Distance < 0 || req.Duration < 0 {
		respondError(w, http.StatusBadRequest, "distance and duration must be non-negative")
		return
	}
	if req.RideType == "" {
		req.RideType = models.RideTypeStandard
	}

	breakdown := fare.Estimate(req.Distance, req.Duration, req.RideType)
	respondOK(w, http.StatusOK, "", map[string]any{"fare": breakdown})
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RideID   string  `json:"rideId"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Method   string  `json:"method"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RideID == "" || req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "rideId and a positive amount are required")
		return
	}

	id, _ := auth.FromContext(r.Context())
	res, err := s.payments.CreateIntent(r.Context(), payments.CreateIntentInput{
		RideID:      req.RideID,
		PassengerID: id.UserID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Method:      req.Method,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusCreated, "Payment intent created", res)
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string `json:"transactionId"`
	}
	_ = decodeBody(r, &req)

	p, err := s.payments.MarkCompleted(r.Context(), mux.Vars(r)["id"], req.TransactionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Payment confirmed", map[string]any{"payment": p})
}

func (s *Server) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	_ = decodeBody(r, &req)

	p, err := s.payments.Refund(r.Context(), payments.RefundInput{
		PaymentID: mux.Vars(r)["id"],
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "Payment refunded", map[string]any{"payment": p})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	asDriver := id.Role == models.RoleDriver
	list, err := s.payments.History(r.Context(), id.UserID, asDriver, queryInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "", map[string]any{"payments": list, "count": len(list)})
}

// handlePaymentWebhook receives Stripe's async events. The signature
// check replaces bearer auth on this route.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := payments.VerifyWebhook(body, r.Header.Get("Stripe-Signature"), s.webhookSecret)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	if err := s.payments.HandleWebhookEvent(r.Context(), ev); err != nil {
		respondServiceError(w, err)
		return
	}
	respondOK(w, http.StatusOK, "ok", nil)
}
