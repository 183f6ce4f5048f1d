package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/nosht/nosht/internal/domain"
)

// Event types handled by the webhook finalizer
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
)

// StripeGateway implements PaymentGateway using Stripe. Clients are cached per secret key.
type StripeGateway struct {
	cfg       GatewayConfig
	tolerance time.Duration
	backends  *stripe.Backends

	mu      sync.Mutex
	clients map[string]*stripe.Client
}

// StripeOption configures a StripeGateway
type StripeOption func(*StripeGateway)

// WithBackends points the gateway at custom Stripe backends
func WithBackends(b *stripe.Backends) StripeOption {
	return func(g *StripeGateway) { g.backends = b }
}

// WithWebhookTolerance sets how old a signed webhook may be
func WithWebhookTolerance(d time.Duration) StripeOption {
	return func(g *StripeGateway) { g.tolerance = d }
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(cfg GatewayConfig, opts ...StripeOption) *StripeGateway {
	if cfg.Currency == "" {
		cfg.Currency = "gbp"
	}
	g := &StripeGateway{
		cfg:       cfg,
		tolerance: webhook.DefaultTolerance,
		clients:   make(map[string]*stripe.Client),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) client(secretKey string) (*stripe.Client, error) {
	if secretKey == "" {
		secretKey = g.cfg.SecretKey
	}
	if secretKey == "" {
		return nil, ErrNotConfigured
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[secretKey]; ok {
		return c, nil
	}
	var opts []stripe.ClientOption
	if g.backends != nil {
		opts = append(opts, stripe.WithBackends(g.backends))
	}
	c := stripe.NewClient(secretKey, opts...)
	g.clients[secretKey] = c
	return c, nil
}

// CreatePaymentIntent creates a PaymentIntent with automatic payment methods
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntentResponse, error) {
	sc, err := g.client(req.SecretKey)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = g.cfg.Currency
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(currency)),
		Metadata: req.Metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: create payment intent: %v", domain.ErrPaymentProvider, err)
	}

	return &PaymentIntentResponse{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Status:          string(pi.Status),
		AmountCents:     pi.Amount,
		Currency:        string(pi.Currency),
	}, nil
}

// Refund refunds a PaymentIntent
func (g *StripeGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	sc, err := g.client(req.SecretKey)
	if err != nil {
		return nil, err
	}

	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Metadata:      req.Metadata,
	}
	if req.AmountCents > 0 {
		params.Amount = stripe.Int64(req.AmountCents)
	}
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := sc.V1Refunds.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: refund %s: %v", domain.ErrPaymentProvider, req.PaymentIntentID, err)
	}

	return &RefundResponse{
		RefundID:    r.ID,
		Status:      string(r.Status),
		AmountCents: r.Amount,
	}, nil
}

// GetCardDetails retrieves the card behind a payment method
func (g *StripeGateway) GetCardDetails(ctx context.Context, secretKey, paymentMethodID string) (*CardDetails, error) {
	sc, err := g.client(secretKey)
	if err != nil {
		return nil, err
	}

	pm, err := sc.V1PaymentMethods.Retrieve(ctx, paymentMethodID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve payment method %s: %v", domain.ErrPaymentProvider, paymentMethodID, err)
	}
	if pm.Card == nil {
		return &CardDetails{}, nil
	}

	return &CardDetails{
		Brand:    string(pm.Card.Brand),
		Last4:    pm.Card.Last4,
		ExpMonth: pm.Card.ExpMonth,
		ExpYear:  pm.Card.ExpYear,
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes payment intent events.
// Verification failures wrap domain.ErrInvalidWebhook.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader, webhookSecret string) (*WebhookEvent, error) {
	if webhookSecret == "" {
		webhookSecret = g.cfg.WebhookSecret
	}
	if webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWebhook, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "payment_intent.") || event.Data == nil {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: decode payment intent: %v", domain.ErrInvalidWebhook, err)
	}

	info := &PaymentIntentInfo{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		Metadata:    pi.Metadata,
	}
	if pi.LatestCharge != nil {
		info.ChargeID = pi.LatestCharge.ID
	}
	if pi.PaymentMethod != nil {
		info.PaymentMethodID = pi.PaymentMethod.ID
	}
	out.PaymentIntent = info
	return out, nil
}
