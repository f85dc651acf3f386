package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
	"github.com/stripe/stripe-go/v74/webhook"
)

// Gateway is the card-processor surface the payment service needs.
// StripeGateway is the production implementation; tests use a fake.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (intentID, clientSecret string, err error)
	Refund(ctx context.Context, intentID string, amountCents int64) (refundID string, err error)
}

// StripeGateway is a thin wrapper around stripe-go.
type StripeGateway struct{}

// NewStripeGateway sets the package-level API key and returns a gateway.
func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{}
}

func (s *StripeGateway) CreateIntent(_ context.Context, amountCents int64, currency string, metadata map[string]string) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", err
	}
	return pi.ID, pi.ClientSecret, nil
}

func (s *StripeGateway) Refund(_ context.Context, intentID string, amountCents int64) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	if amountCents > 0 {
		params.Amount = stripe.Int64(amountCents)
	}
	r, err := refund.New(params)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// VerifyWebhook validates a Stripe webhook signature and returns the event.
func VerifyWebhook(payload []byte, signature, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, secret)
}
