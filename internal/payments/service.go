// Package payments records ride payments and drives the Stripe
// PaymentIntent flow. Amounts are stored as decimal units in the
// payment record and converted to cents only at the gateway boundary.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	stripe "github.com/stripe/stripe-go/v74"

	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/observability"
	"github.com/example/taxi-backend/internal/store"
)

var ErrAlreadyPaid = errors.New("ride already paid")

type Service struct {
	store   *store.Store
	gateway Gateway
	log     *slog.Logger
	now     func() time.Time
}

func NewService(st *store.Store, gw Gateway, log *slog.Logger) *Service {
	return &Service{store: st, gateway: gw, log: log, now: time.Now}
}

// CreateIntentInput describes a payment to start.
type CreateIntentInput struct {
	RideID      string
	PassengerID string
	Amount      float64
	Currency    string
	Method      string
}

// IntentResult carries what the client needs to confirm the payment.
type IntentResult struct {
	Payment      *models.Payment `json:"payment"`
	ClientSecret string          `json:"clientSecret,omitempty"`
}

// CreateIntent opens a payment record and, when a gateway is configured,
// a Stripe PaymentIntent for it.
func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (*IntentResult, error) {
	ride, err := s.store.Rides.Get(ctx, in.RideID)
	if err != nil {
		return nil, fmt.Errorf("load ride: %w", err)
	}

	if ride.PaymentStatus == "paid" {
		return nil, ErrAlreadyPaid
	}

	currency := in.Currency
	if currency == "" {
		currency = "usd"
	}
	method := in.Method
	if method == "" {
		method = "card"
	}

	now := s.now()
	p := &models.Payment{
		ID:          store.NewID(),
		RideID:      in.RideID,
		PassengerID: in.PassengerID,
		DriverID:    ride.DriverID,
		Amount:      in.Amount,
		Currency:    currency,
		Method:      method,
		Status:      models.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var clientSecret string
	if s.gateway != nil && method == "card" {
		intentID, secret, err := s.gateway.CreateIntent(ctx, toCents(in.Amount), currency, map[string]string{
			"rideId":    in.RideID,
			"paymentId": p.ID,
		})
		if err != nil {
			observability.PaymentsTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("create payment intent: %w", err)
		}
		p.PaymentIntentID = intentID
		clientSecret = secret
	}

	if err := s.store.Payments.Create(ctx, p); err != nil {
		return nil, err
	}
	observability.PaymentsTotal.WithLabelValues("created").Inc()
	return &IntentResult{Payment: p, ClientSecret: clientSecret}, nil
}

// MarkCompleted settles the payment and stamps the ride as paid.
func (s *Service) MarkCompleted(ctx context.Context, paymentID, transactionID string) (*models.Payment, error) {
	p, err := s.store.Payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	p.Status = models.PaymentCompleted
	p.TransactionID = transactionID
	p.PaidAt = &now
	p.UpdatedAt = now
	if err := s.store.Payments.Put(ctx, p); err != nil {
		return nil, err
	}
	observability.PaymentsTotal.WithLabelValues("completed").Inc()

	// Ride paymentStatus update is best effort.
	if ride, err := s.store.Rides.Get(ctx, p.RideID); err == nil {
		ride.PaymentStatus = "paid"
		ride.UpdatedAt = now
		if err := s.store.Rides.Put(ctx, ride); err != nil {
			observability.CascadeFailuresTotal.Inc()
			s.log.Warn("payment completed but ride update failed", "ride_id", p.RideID, "error", err)
		}
	}
	return p, nil
}

// RefundInput describes a refund request.
type RefundInput struct {
	PaymentID string
	Amount    float64
	Reason    string
}

// Refund reverses a completed payment, fully or partially.
func (s *Service) Refund(ctx context.Context, in RefundInput) (*models.Payment, error) {
	p, err := s.store.Payments.Get(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentCompleted {
		return nil, fmt.Errorf("payment %s is %s, only completed payments can be refunded", p.ID, p.Status)
	}

	amount := in.Amount
	if amount <= 0 || amount > p.Amount {
		amount = p.Amount
	}

	if s.gateway != nil && p.PaymentIntentID != "" {
		if _, err := s.gateway.Refund(ctx, p.PaymentIntentID, toCents(amount)); err != nil {
			observability.PaymentsTotal.WithLabelValues("refund_failed").Inc()
			return nil, fmt.Errorf("gateway refund: %w", err)
		}
	}

	now := s.now()
	p.Status = models.PaymentRefunded
	p.RefundAmount = amount
	p.RefundReason = in.Reason
	p.RefundedAt = &now
	p.UpdatedAt = now
	if err := s.store.Payments.Put(ctx, p); err != nil {
		return nil, err
	}
	observability.PaymentsTotal.WithLabelValues("refunded").Inc()
	return p, nil
}

// HandleWebhookEvent applies a verified Stripe event to the matching
// payment record. Unknown event types are ignored.
func (s *Service) HandleWebhookEvent(ctx context.Context, ev stripe.Event) error {
	switch ev.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		return nil
	}

	var pi struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}

	p, err := s.store.Payments.FindByIntent(ctx, pi.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn("webhook for unknown payment intent", "intent_id", pi.ID, "type", ev.Type)
			return nil
		}
		return err
	}

	if ev.Type == "payment_intent.succeeded" {
		_, err = s.MarkCompleted(ctx, p.ID, pi.ID)
		return err
	}

	now := s.now()
	p.Status = models.PaymentFailed
	p.FailureReason = "card declined"
	p.UpdatedAt = now
	if err := s.store.Payments.Put(ctx, p); err != nil {
		return err
	}
	observability.PaymentsTotal.WithLabelValues("failed").Inc()
	return nil
}

// History returns payments for a user in either role.
func (s *Service) History(ctx context.Context, userID string, asDriver bool, limit int) ([]*models.Payment, error) {
	if asDriver {
		return s.store.Payments.ListByDriver(ctx, userID, limit)
	}
	return s.store.Payments.ListByPassenger(ctx, userID, limit)
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
