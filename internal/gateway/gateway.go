package gateway

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when neither the company nor the service has a secret key
var ErrNotConfigured = errors.New("payment gateway is not configured")

// PaymentGateway defines the interface for payment processing. SecretKey and WebhookSecret on
// requests are per company; empty values fall back to the gateway defaults.
type PaymentGateway interface {
	// CreatePaymentIntent creates a PaymentIntent and returns its client secret
	CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntentResponse, error)

	// Refund refunds all or part of a PaymentIntent
	Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)

	// GetCardDetails retrieves card brand, last four digits and expiry of a payment method
	GetCardDetails(ctx context.Context, secretKey, paymentMethodID string) (*CardDetails, error)

	// ParseWebhook verifies the signature header and decodes the event
	ParseWebhook(payload []byte, signatureHeader, webhookSecret string) (*WebhookEvent, error)

	// Name returns the gateway name
	Name() string
}

// GatewayConfig holds common gateway configuration
type GatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// PaymentIntentRequest represents a request to create a PaymentIntent
type PaymentIntentRequest struct {
	SecretKey      string
	AmountCents    int64
	Currency       string
	Description    string
	Metadata       map[string]string
	CustomerEmail  string
	IdempotencyKey string
}

// PaymentIntentResponse represents a PaymentIntent response
type PaymentIntentResponse struct {
	PaymentIntentID string
	ClientSecret    string
	Status          string
	AmountCents     int64
	Currency        string
}

// RefundRequest represents a refund of a PaymentIntent. Zero AmountCents refunds in full.
// Requests sharing an IdempotencyKey create at most one refund.
type RefundRequest struct {
	SecretKey       string
	PaymentIntentID string
	AmountCents     int64
	Reason          string
	Metadata        map[string]string
	IdempotencyKey  string
}

// RefundResponse represents a refund response
type RefundResponse struct {
	RefundID    string
	Status      string
	AmountCents int64
}

// CardDetails describes the card used for a payment
type CardDetails struct {
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// WebhookEvent is a verified provider event
type WebhookEvent struct {
	ID            string
	Type          string
	PaymentIntent *PaymentIntentInfo
}

// PaymentIntentInfo is the payment intent carried by a webhook event
type PaymentIntentInfo struct {
	ID              string
	Status          string
	AmountCents     int64
	Currency        string
	Metadata        map[string]string
	ChargeID        string
	PaymentMethodID string
}
