package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/gateway"
	"github.com/nosht/nosht/internal/repository"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/telemetry"
)

// eventService implements the EventService interface
type eventService struct {
	events    repository.EventRepository
	bookings  repository.BookingRepository
	companies repository.CompanyRepository
	gateway   gateway.PaymentGateway
	waiting   promoter
	ttl       time.Duration
	log       *logger.Logger
}

// NewEventService creates a new EventService
func NewEventService(
	events repository.EventRepository,
	bookings repository.BookingRepository,
	companies repository.CompanyRepository,
	gw gateway.PaymentGateway,
	waitingList WaitingListService,
	opts Options,
	log *logger.Logger,
) EventService {
	s := &eventService{
		events:    events,
		bookings:  bookings,
		companies: companies,
		gateway:   gw,
		ttl:       opts.withDefaults().ReservationTTL,
		log:       loggerOrGlobal(log),
	}
	if waitingList != nil {
		s.waiting = waitingList
	}
	return s
}

func (s *eventService) event(ctx context.Context, companyID, eventID int64) (*domain.Event, error) {
	event, err := s.events.GetByID(ctx, companyID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

func (s *eventService) managedEvent(ctx context.Context, caller Caller, eventID int64) (*domain.Event, error) {
	event, err := s.event(ctx, caller.CompanyID, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsManagedBy(caller.UserID, caller.CompanyID, caller.Role) {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

// TicketsRemaining sweeps lapsed holds before reading the capacity
func (s *eventService) TicketsRemaining(ctx context.Context, companyID, eventID int64) (*int, error) {
	event, err := s.event(ctx, companyID, eventID)
	if err != nil {
		return nil, err
	}
	return s.events.CheckTicketsRemaining(ctx, event.ID, s.ttl)
}

// SetTicketLimit changes the capacity. Raising it, or removing it, may free tickets for the waiting list.
func (s *eventService) SetTicketLimit(ctx context.Context, caller Caller, eventID int64, limit *int) (*int, error) {
	event, err := s.managedEvent(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}
	if limit != nil && *limit < 1 {
		return nil, domain.ErrTicketLimitTooLow
	}

	remaining, err := s.events.SetTicketLimit(ctx, repository.SetTicketLimitParams{
		CompanyID:   caller.CompanyID,
		ActorUserID: caller.UserID,
		EventID:     event.ID,
		TicketLimit: limit,
		TTL:         s.ttl,
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("ticket limit changed",
		zap.Int64("event_id", event.ID),
		zap.Any("ticket_limit", limit),
	)
	promoteAfter(ctx, s.waiting, s.log, caller.CompanyID, event.ID)
	return remaining, nil
}

// UpdateTicketTypes replaces the event's ticket types, keeping at least one reservable type
func (s *eventService) UpdateTicketTypes(ctx context.Context, caller Caller, eventID int64, types []domain.TicketType) error {
	event, err := s.managedEvent(ctx, caller, eventID)
	if err != nil {
		return err
	}

	kept := make([]domain.TicketType, 0, len(types))
	for _, t := range types {
		t.EventID = event.ID
		if t.Mode == "" {
			t.Mode = domain.TicketModeTicket
		}
		if t.SlotsUsed < 1 {
			t.SlotsUsed = 1
		}
		kept = append(kept, t)
	}
	if err := domain.ValidateTicketTypes(kept); err != nil {
		return err
	}

	return s.events.ReplaceTicketTypes(ctx, repository.ReplaceTicketTypesParams{
		CompanyID:   caller.CompanyID,
		ActorUserID: caller.UserID,
		EventID:     event.ID,
		TicketTypes: kept,
	})
}

// CancelTicket cancels a booked or paid ticket. The refund is issued before the ticket changes so a
// provider failure leaves the booking untouched.
func (s *eventService) CancelTicket(ctx context.Context, caller Caller, eventID, ticketID int64, refundAmount *decimal.Decimal) error {
	ctx, span := telemetry.StartSpan(ctx, "service.event.cancel_ticket")
	defer span.End()

	event, err := s.managedEvent(ctx, caller, eventID)
	if err != nil {
		return err
	}

	ticket, err := s.bookings.GetTicket(ctx, event.ID, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return domain.ErrTicketNotFound
	}
	if ticket.Status != domain.TicketStatusBooked && ticket.Status != domain.TicketStatusPaid {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, ticket.Status, domain.TicketStatusCancelled)
	}

	cancellation := domain.TicketCancellation{TicketID: ticket.ID}
	if refundAmount != nil && refundAmount.IsPositive() {
		refund, err := s.refund(ctx, caller, ticket, *refundAmount)
		if err != nil {
			telemetry.SetSpanError(ctx, err)
			return err
		}
		cancellation.RefundAmount = refundAmount.StringFixed(2)
		cancellation.RefundID = refund.RefundID
	}

	if err := s.bookings.CancelTicket(ctx, repository.CancelTicketParams{
		CompanyID:    caller.CompanyID,
		ActorUserID:  caller.UserID,
		EventID:      event.ID,
		TicketID:     ticket.ID,
		TTL:          s.ttl,
		Cancellation: cancellation,
	}); err != nil {
		return err
	}

	s.log.WithContext(ctx).Info("ticket cancelled",
		zap.Int64("event_id", event.ID),
		zap.Int64("ticket_id", ticket.ID),
		zap.String("refund_id", cancellation.RefundID),
	)
	promoteAfter(ctx, s.waiting, s.log, caller.CompanyID, event.ID)
	return nil
}

func (s *eventService) refund(ctx context.Context, caller Caller, ticket *repository.TicketDetail, amount decimal.Decimal) (*gateway.RefundResponse, error) {
	if ticket.Status != domain.TicketStatusPaid || ticket.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: ticket was not paid online", domain.ErrRefundNotPossible)
	}
	paid := decimal.Zero
	if ticket.Price.Valid {
		paid = paid.Add(ticket.Price.Decimal)
	}
	if ticket.ExtraDonated.Valid {
		paid = paid.Add(ticket.ExtraDonated.Decimal)
	}
	if amount.GreaterThan(paid) {
		return nil, fmt.Errorf("%w: refund exceeds the %s paid", domain.ErrRefundNotPossible, paid.StringFixed(2))
	}

	company, err := s.companies.GetByID(ctx, caller.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrCompanyNotFound
	}

	return s.gateway.Refund(ctx, &gateway.RefundRequest{
		SecretKey:       company.StripeSecretKey,
		PaymentIntentID: ticket.PaymentIntentID,
		AmountCents:     domain.ToCents(amount),
		Reason:          "requested_by_customer",
		// the ticket is only locked later, so concurrent cancels must collapse to one refund
		IdempotencyKey:  fmt.Sprintf("refund-ticket-%d", ticket.ID),
		Metadata: map[string]string{
			"ticket_id": strconv.FormatInt(ticket.ID, 10),
			"event_id":  strconv.FormatInt(ticket.EventID, 10),
		},
	})
}
