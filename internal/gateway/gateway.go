package gateway

import "context"

// Event types surfaced by the payment provider that drive order state
// transitions. Any other type is acknowledged without effect.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// LineItem is one display line of a hosted checkout session. UnitAmount is
// in minor currency units and already embeds tax.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// SessionRequest describes a hosted checkout session to create
type SessionRequest struct {
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Session is a provider-hosted checkout flow instance. The metadata carries
// the order and user ids used to correlate webhook events back to local state.
type Session struct {
	ID       string
	URL      string
	Metadata map[string]string
}

// Event is a verified, decoded webhook notification
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
}

// CheckoutGateway wraps the hosted-payment provider
type CheckoutGateway interface {
	// CreateSession creates a checkout session and returns its redirect URL
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)

	// ConstructEvent verifies the signature over the exact payload bytes as
	// received and decodes the event
	ConstructEvent(payload []byte, sigHeader string) (*Event, error)

	// SessionsByPaymentIntent lists the checkout sessions associated with a
	// payment intent
	SessionsByPaymentIntent(ctx context.Context, paymentIntentID string) ([]Session, error)
}
