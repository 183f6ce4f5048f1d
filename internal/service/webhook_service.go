package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/gateway"
	"github.com/nosht/nosht/internal/jobs"
	"github.com/nosht/nosht/internal/repository"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/telemetry"
)

// Webhook outcomes
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
)

// WebhookResult reports what a webhook delivery did
type WebhookResult struct {
	Status   string `json:"status"`
	EventID  string `json:"event_id,omitempty"`
	Purpose  string `json:"purpose,omitempty"`
	ActionID int64  `json:"action_id,omitempty"`
}

// webhookService implements the WebhookService interface
type webhookService struct {
	companies repository.CompanyRepository
	bookings  repository.BookingRepository
	donations repository.DonationRepository
	gateway   gateway.PaymentGateway
	jobs      *enqueuer
	metrics   *telemetry.BookingMetrics
	ttl       time.Duration
	log       *logger.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(
	companies repository.CompanyRepository,
	bookings repository.BookingRepository,
	donations repository.DonationRepository,
	gw gateway.PaymentGateway,
	queue jobs.Enqueuer,
	opts Options,
	metrics *telemetry.BookingMetrics,
	log *logger.Logger,
) WebhookService {
	metrics = metricsOrNop(metrics)
	log = loggerOrGlobal(log)
	return &webhookService{
		companies: companies,
		bookings:  bookings,
		donations: donations,
		gateway:   gw,
		jobs:      &enqueuer{queue: queue, metrics: metrics, log: log},
		metrics:   metrics,
		ttl:       opts.withDefaults().ReservationTTL,
		log:       log,
	}
}

// HandleStripeWebhook verifies the delivery with the company's webhook secret and applies
// payment_intent.succeeded. Duplicate deliveries return domain.ErrAlreadyProcessed with no side effects.
func (s *webhookService) HandleStripeWebhook(ctx context.Context, companyID int64, payload []byte, signature string) (*WebhookResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.webhook.stripe")
	defer span.End()

	res, err := s.handle(ctx, companyID, payload, signature)
	outcome := webhookOutcome(res, err)
	s.metrics.Webhooks.Inc(ctx, telemetry.CompanyIDAttr(companyID), telemetry.WebhookResultAttr(outcome))
	if outcome == "error" {
		telemetry.SetSpanError(ctx, err)
	}
	return res, err
}

func webhookOutcome(res *WebhookResult, err error) string {
	switch {
	case err == nil:
		return res.Status
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return "duplicate"
	case errors.Is(err, domain.ErrInvalidWebhook), errors.Is(err, domain.ErrCompanyNotFound):
		return "invalid"
	default:
		return "error"
	}
}

func (s *webhookService) handle(ctx context.Context, companyID int64, payload []byte, signature string) (*WebhookResult, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrCompanyNotFound
	}

	event, err := s.gateway.ParseWebhook(payload, signature, company.StripeWebhookSecret)
	if err != nil {
		return nil, err
	}

	log := s.log.WithContext(ctx).WithFields(
		zap.Int64("company_id", companyID),
		zap.String("stripe_event_id", event.ID),
		zap.String("stripe_event_type", event.Type),
	)

	if event.Type != gateway.EventPaymentIntentSucceeded || event.PaymentIntent == nil {
		log.Info("ignoring webhook event")
		return &WebhookResult{Status: WebhookIgnored, EventID: event.ID}, nil
	}

	pi := event.PaymentIntent
	purpose := pi.Metadata[domain.MetaPurpose]
	charge := domain.ChargeDetails{
		ChargeID:        pi.ChargeID,
		PaymentIntentID: pi.ID,
		AmountCents:     pi.AmountCents,
		Currency:        pi.Currency,
	}
	s.addCardDetails(ctx, company, pi.PaymentMethodID, &charge)

	res := &WebhookResult{Status: WebhookProcessed, EventID: event.ID, Purpose: purpose}
	switch purpose {
	case domain.PurposeBuyTickets:
		reserveID, err := metadataID(pi.Metadata, domain.MetaReserveActionID)
		if err != nil {
			return nil, err
		}
		booked, err := s.bookings.ConfirmTicketPurchase(ctx, repository.ConfirmPurchaseParams{
			CompanyID:       companyID,
			ReserveActionID: reserveID,
			Charge:          charge,
			TTL:             s.ttl,
		})
		if err != nil {
			return nil, err
		}
		res.ActionID = booked.ActionID
		s.jobs.enqueue(ctx, bookedJobs(booked, domain.FromCents(pi.AmountCents).StringFixed(2))...)
		log.Info("tickets paid",
			zap.Int64("event_id", booked.EventID),
			zap.Int64("reserve_action_id", reserveID),
			zap.Int("ticket_count", booked.TicketCount),
		)

	case domain.PurposeDonate:
		prepareID, err := metadataID(pi.Metadata, domain.MetaPrepareActionID)
		if err != nil {
			return nil, err
		}
		donation, err := s.donations.ConfirmDonation(ctx, repository.ConfirmDonationParams{
			CompanyID:       companyID,
			PrepareActionID: prepareID,
			Charge:          charge,
		})
		if err != nil {
			return nil, err
		}
		res.ActionID = donation.Donation.ActionID
		s.jobs.enqueue(ctx, donationJobs(donation)...)
		log.Info("donation recorded",
			zap.Int64("prepare_action_id", prepareID),
			zap.String("amount", donation.Donation.Amount.StringFixed(2)),
		)

	default:
		log.Warn("payment intent without a known purpose", zap.String("purpose", purpose))
		return &WebhookResult{Status: WebhookIgnored, EventID: event.ID}, nil
	}

	return res, nil
}

// addCardDetails records the card brand and expiry when the provider returns them. A lookup
// failure does not block the booking.
func (s *webhookService) addCardDetails(ctx context.Context, company *domain.Company, paymentMethodID string, charge *domain.ChargeDetails) {
	if paymentMethodID == "" {
		return
	}
	card, err := s.gateway.GetCardDetails(ctx, company.StripeSecretKey, paymentMethodID)
	if err != nil {
		s.log.WithContext(ctx).Warn("failed to load card details",
			zap.String("payment_method_id", paymentMethodID),
			zap.Error(err),
		)
		return
	}
	if card.Last4 == "" {
		return
	}
	charge.NewCard = true
	charge.BrandLast4 = fmt.Sprintf("%s-%s", card.Brand, card.Last4)
	charge.CardExpiry = fmt.Sprintf("%02d/%d", card.ExpMonth, card.ExpYear%100)
}

func metadataID(meta map[string]string, key string) (int64, error) {
	id, err := strconv.ParseInt(meta[key], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: metadata %s missing", domain.ErrInvalidWebhook, key)
	}
	return id, nil
}

func donationJobs(d *repository.ConfirmedDonation) []jobs.Job {
	base := jobs.Job{
		CompanyID: d.CompanyID,
		EventID:   d.EventID,
		UserID:    d.UserID,
		ActionID:  d.Donation.ActionID,
		Amount:    d.Donation.Amount.StringFixed(2),
	}
	thanks, crm := base, base
	thanks.Type = jobs.TypeSendDonationThanks
	crm.Type = jobs.TypeCRMDonation
	return []jobs.Job{thanks, crm}
}
