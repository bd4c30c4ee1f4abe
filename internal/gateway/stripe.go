package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeGateway implements CheckoutGateway against the Stripe API. One
// instance is constructed at startup and shared across all handlers.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	currency      string
}

// NewStripeGateway creates a configured Stripe gateway client
func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

// CreateSession creates a hosted checkout session
func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		LineItems:  lineItems,
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &Session{
		ID:       sess.ID,
		URL:      sess.URL,
		Metadata: sess.Metadata,
	}, nil
}

// ConstructEvent verifies and decodes a webhook payload. The payload must be
// the raw request body; re-serialized JSON breaks signature verification.
func (g *StripeGateway) ConstructEvent(payload []byte, sigHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to verify webhook: %w", err)
	}

	// For payment_intent.* events the event object is the payment intent
	// itself, so its id is the correlation key.
	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return nil, fmt.Errorf("failed to decode event object: %w", err)
	}

	return &Event{
		ID:              event.ID,
		Type:            string(event.Type),
		PaymentIntentID: object.ID,
	}, nil
}

// SessionsByPaymentIntent lists checkout sessions for a payment intent
func (g *StripeGateway) SessionsByPaymentIntent(ctx context.Context, paymentIntentID string) ([]Session, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx

	var sessions []Session
	iter := g.api.CheckoutSessions.List(params)
	for iter.Next() {
		s := iter.CheckoutSession()
		sessions = append(sessions, Session{
			ID:       s.ID,
			URL:      s.URL,
			Metadata: s.Metadata,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkout sessions: %w", err)
	}

	return sessions, nil
}
