package models

import "errors"

// Sentinel errors shared across the service and handler layers. Handlers
// map them to HTTP status classes with errors.Is.
var (
	// ErrInvalidOrder indicates a placement request with no items or no
	// shipping address
	ErrInvalidOrder = errors.New("order must have items and a shipping address")

	// ErrProductNotFound indicates an order line referencing an unknown product
	ErrProductNotFound = errors.New("product not found")

	// ErrSignatureVerification indicates a webhook payload that failed
	// signature verification
	ErrSignatureVerification = errors.New("webhook signature verification failed")

	// ErrSessionResolution indicates a payment intent that maps to zero or
	// multiple checkout sessions
	ErrSessionResolution = errors.New("cannot resolve checkout session for payment intent")
)
