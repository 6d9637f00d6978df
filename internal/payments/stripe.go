package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/example/driver-hiring/internal/models"
)

// StripeClient maps an order onto a Stripe PaymentIntent. The intent id is
// used as the order reference.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(apiKey string) *StripeClient {
	return &StripeClient{api: client.New(apiKey, nil)}
}

func (s *StripeClient) Provider() string { return "stripe" }

func (s *StripeClient) CreateOrder(ctx context.Context, req OrderRequest) (models.Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount)),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	params.AddMetadata("receipt", req.Receipt)
	params.Description = stripe.String(req.Receipt)

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return models.Order{}, &Error{Provider: s.Provider(), Err: err}
	}
	return models.Order{
		ID:        pi.ID,
		Entity:    "payment_intent",
		Amount:    pi.Amount,
		Currency:  string(pi.Currency),
		Receipt:   req.Receipt,
		Status:    string(pi.Status),
		CreatedAt: pi.Created,
		Provider:  s.Provider(),
	}, nil
}
