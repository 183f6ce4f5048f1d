package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/gateway"
	"github.com/nosht/nosht/internal/jobs"
	"github.com/nosht/nosht/internal/repository"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/telemetry"
)

// BookingTokens seals and opens reservation tokens
type BookingTokens interface {
	Seal(claims domain.BookingClaims) (string, error)
	Open(token string) (*domain.BookingClaims, error)
}

// ReservationDeps are the collaborators of the reservation service
type ReservationDeps struct {
	Events      repository.EventRepository
	Bookings    repository.BookingRepository
	Users       repository.UserRepository
	Companies   repository.CompanyRepository
	Gateway     gateway.PaymentGateway
	Tokens      BookingTokens
	Queue       jobs.Enqueuer
	WaitingList WaitingListService
	Metrics     *telemetry.BookingMetrics
	Logger      *logger.Logger
}

// reservationService implements the ReservationService interface
type reservationService struct {
	events    repository.EventRepository
	bookings  repository.BookingRepository
	users     repository.UserRepository
	companies repository.CompanyRepository
	gateway   gateway.PaymentGateway
	tokens    BookingTokens
	waiting   promoter
	jobs      *enqueuer
	metrics   *telemetry.BookingMetrics
	opts      Options
	log       *logger.Logger
	now       func() time.Time
}

// NewReservationService creates a new ReservationService
func NewReservationService(deps ReservationDeps, opts Options) ReservationService {
	metrics := metricsOrNop(deps.Metrics)
	log := loggerOrGlobal(deps.Logger)
	s := &reservationService{
		events:    deps.Events,
		bookings:  deps.Bookings,
		users:     deps.Users,
		companies: deps.Companies,
		gateway:   deps.Gateway,
		tokens:    deps.Tokens,
		jobs:      &enqueuer{queue: deps.Queue, metrics: metrics, log: log},
		metrics:   metrics,
		opts:      opts.withDefaults(),
		log:       log,
		now:       time.Now,
	}
	if deps.WaitingList != nil {
		s.waiting = deps.WaitingList
	}
	return s
}

type reserveExtra struct {
	TicketTypeID int64  `json:"ticket_type_id"`
	TicketCount  int    `json:"ticket_count"`
	ItemPrice    string `json:"item_price"`
	ExtraDonated string `json:"extra_donated"`
	TotalPrice   string `json:"total_price"`
}

// Reserve validates the request, prechecks capacity, then inserts the reservation in one
// transaction that the capacity constraint guards.
func (s *reservationService) Reserve(ctx context.Context, caller Caller, req *domain.ReserveRequest) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.reserve")
	defer span.End()
	start := s.now()

	res, result, err := s.reserve(ctx, caller, req)
	attrs := telemetry.EventIDAttr(req.EventID)
	s.metrics.Reservations.Inc(ctx, attrs, telemetry.ResultAttr(result))
	s.metrics.ReserveDurationSec.Record(ctx, s.now().Sub(start).Seconds(), telemetry.ResultAttr(result))
	if err != nil {
		if result == "error" {
			telemetry.SetSpanError(ctx, err)
		}
		return nil, err
	}
	s.metrics.TicketsReserved.Add(ctx, int64(res.TicketCount), attrs)
	return res, nil
}

func (s *reservationService) reserve(ctx context.Context, caller Caller, req *domain.ReserveRequest) (*domain.Reservation, string, error) {
	count := len(req.Tickets)
	if count == 0 {
		return nil, "invalid", domain.ErrNoTickets
	}
	if count > s.opts.MaxTickets {
		return nil, "invalid", fmt.Errorf("%w: at most %d per reservation", domain.ErrTooManyTickets, s.opts.MaxTickets)
	}

	event, err := s.events.GetByID(ctx, caller.CompanyID, req.EventID)
	if err != nil {
		return nil, "error", err
	}
	if event == nil {
		return nil, "invalid", domain.ErrEventNotFound
	}
	if err := event.CheckBookable(); err != nil {
		return nil, "invalid", err
	}

	tt, err := s.events.GetTicketType(ctx, event.ID, req.TicketTypeID)
	if err != nil {
		return nil, "error", err
	}
	if tt == nil || !tt.IsReservable() {
		return nil, "invalid", domain.ErrTicketTypeNotFound
	}

	remaining, err := s.events.CheckTicketsRemaining(ctx, event.ID, s.opts.ReservationTTL)
	if err != nil {
		return nil, "error", err
	}
	if remaining != nil && *remaining < tt.SlotsUsed*count {
		return nil, "soft_conflict", &domain.TicketsRemainingError{Remaining: max(*remaining, 0)}
	}

	guests, err := s.users.UpsertGuests(ctx, caller.CompanyID, req.Tickets)
	if err != nil {
		return nil, "error", err
	}

	price := domain.PriceReservation(tt, event.CoverCostsPercentage, req.CoverCosts, count)
	tickets := make([]domain.NewTicket, 0, count)
	for i, h := range req.Tickets {
		t := domain.NewTicket{
			FirstName: h.FirstName,
			LastName:  h.LastName,
			Email:     h.Email,
			ExtraInfo: h.ExtraInfo,
			Price:     tt.Price,
		}
		if id, ok := guests[strings.ToLower(strings.TrimSpace(h.Email))]; ok {
			t.UserID = &id
		} else if i == 0 {
			uid := caller.UserID
			t.UserID = &uid
		}
		if price.ItemExtraDonated.IsPositive() {
			t.ExtraDonated = decimal.NewNullDecimal(price.ItemExtraDonated)
		}
		tickets = append(tickets, t)
	}

	actionID, err := s.bookings.CreateReservation(ctx, repository.CreateReservationParams{
		CompanyID:    caller.CompanyID,
		UserID:       caller.UserID,
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		TTL:          s.opts.ReservationTTL,
		Tickets:      tickets,
		Extra: reserveExtra{
			TicketTypeID: tt.ID,
			TicketCount:  count,
			ItemPrice:    price.ItemPrice.StringFixed(2),
			ExtraDonated: price.ExtraDonated().StringFixed(2),
			TotalPrice:   price.Total().StringFixed(2),
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientTickets) {
			return nil, "hard_conflict", err
		}
		return nil, "error", err
	}

	token, err := s.tokens.Seal(domain.BookingClaims{
		UserID:      caller.UserID,
		ActionID:    actionID,
		EventID:     event.ID,
		PriceCent:   price.TotalCents(),
		TicketCount: count,
		EventName:   event.Name,
	})
	if err != nil {
		return nil, "error", err
	}

	res := &domain.Reservation{
		BookingToken: token,
		TicketCount:  count,
		ItemPrice:    price.ItemPrice,
		ExtraDonated: price.ExtraDonated(),
		TotalPrice:   price.Total(),
		Timeout:      s.now().Add(s.opts.ReservationTTL).Unix(),
		ActionID:     actionID,
	}

	if !price.IsFree() {
		secret, err := s.createPaymentIntent(ctx, caller, event, actionID, price)
		if err != nil {
			s.releaseAfterFailure(ctx, caller, event.ID, actionID)
			return nil, "error", err
		}
		res.ClientSecret = &secret
	}

	s.log.WithContext(ctx).Info("tickets reserved",
		zap.Int64("event_id", event.ID),
		zap.Int64("action_id", actionID),
		zap.Int("ticket_count", count),
		zap.String("total", price.Total().StringFixed(2)),
	)
	return res, "ok", nil
}

func (s *reservationService) createPaymentIntent(ctx context.Context, caller Caller, event *domain.Event,
	actionID int64, price domain.ReservationPrice) (string, error) {
	company, err := s.companies.GetByID(ctx, caller.CompanyID)
	if err != nil {
		return "", err
	}
	if company == nil {
		return "", domain.ErrCompanyNotFound
	}

	pi, err := s.gateway.CreatePaymentIntent(ctx, &gateway.PaymentIntentRequest{
		SecretKey:   company.StripeSecretKey,
		AmountCents: price.TotalCents(),
		Currency:    company.Currency,
		Description: fmt.Sprintf("%d tickets for %s", price.TicketCount, event.Name),
		Metadata: map[string]string{
			domain.MetaPurpose:         domain.PurposeBuyTickets,
			domain.MetaReserveActionID: strconv.FormatInt(actionID, 10),
			domain.MetaEventID:         strconv.FormatInt(event.ID, 10),
			domain.MetaUserID:          strconv.FormatInt(caller.UserID, 10),
			domain.MetaCompanyID:       strconv.FormatInt(caller.CompanyID, 10),
		},
		CustomerEmail:  caller.Email,
		IdempotencyKey: fmt.Sprintf("reserve-%d", actionID),
	})
	if err != nil {
		return "", err
	}
	return pi.ClientSecret, nil
}

// releaseAfterFailure drops a reservation whose payment intent could not be created
func (s *reservationService) releaseAfterFailure(ctx context.Context, caller Caller, eventID, actionID int64) {
	_, err := s.bookings.CancelReservation(ctx, repository.CancelReservationParams{
		CompanyID:       caller.CompanyID,
		UserID:          caller.UserID,
		EventID:         eventID,
		ReserveActionID: actionID,
		TTL:             s.opts.ReservationTTL,
	})
	if err != nil {
		s.log.WithContext(ctx).Warn("failed to release reservation after payment error",
			zap.Int64("action_id", actionID),
			zap.Error(err),
		)
	}
}

func (s *reservationService) openToken(caller Caller, bookingToken string) (*domain.BookingClaims, error) {
	claims, err := s.tokens.Open(bookingToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	if claims.UserID != caller.UserID {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// CancelReservation deletes still-reserved tickets and lets the waiting list know
func (s *reservationService) CancelReservation(ctx context.Context, caller Caller, bookingToken string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.cancel")
	defer span.End()

	claims, err := s.openToken(caller, bookingToken)
	if err != nil {
		return err
	}

	n, err := s.bookings.CancelReservation(ctx, repository.CancelReservationParams{
		CompanyID:       caller.CompanyID,
		UserID:          caller.UserID,
		EventID:         claims.EventID,
		ReserveActionID: claims.ActionID,
		TTL:             s.opts.ReservationTTL,
	})
	if err != nil {
		return err
	}
	s.metrics.ReservationsFreed.Inc(ctx, telemetry.EventIDAttr(claims.EventID))

	s.log.WithContext(ctx).Info("reservation cancelled",
		zap.Int64("event_id", claims.EventID),
		zap.Int64("action_id", claims.ActionID),
		zap.Int("tickets", n),
	)
	promoteAfter(ctx, s.waiting, s.log, caller.CompanyID, claims.EventID)
	return nil
}

// BookFree books reserved tickets without an online payment. Paid reservations are only accepted
// from a user who manages the event, and are recorded as an offline booking.
func (s *reservationService) BookFree(ctx context.Context, caller Caller, bookingToken string) (*repository.ConfirmedBooking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.book_free")
	defer span.End()

	claims, err := s.openToken(caller, bookingToken)
	if err != nil {
		return nil, err
	}

	actionType := domain.ActionBookFreeTickets
	if !claims.IsFree() {
		event, err := s.events.GetByID(ctx, caller.CompanyID, claims.EventID)
		if err != nil {
			return nil, err
		}
		if event == nil {
			return nil, domain.ErrEventNotFound
		}
		if !event.IsManagedBy(caller.UserID, caller.CompanyID, caller.Role) {
			return nil, domain.ErrPaidBookingNotAllowed
		}
		actionType = domain.ActionBookOfflineTickets
	}

	booked, err := s.bookings.BookReserved(ctx, repository.BookReservedParams{
		CompanyID:       caller.CompanyID,
		ActorUserID:     caller.UserID,
		BuyerUserID:     claims.UserID,
		EventID:         claims.EventID,
		ReserveActionID: claims.ActionID,
		ActionType:      actionType,
		TTL:             s.opts.ReservationTTL,
	})
	if err != nil {
		return nil, err
	}

	var amount string
	if !claims.IsFree() {
		amount = domain.FromCents(claims.PriceCent).StringFixed(2)
	}
	s.jobs.enqueue(ctx, bookedJobs(booked, amount)...)

	s.log.WithContext(ctx).Info("reservation booked without payment",
		zap.Int64("event_id", booked.EventID),
		zap.Int64("action_id", booked.ActionID),
		zap.String("action_type", string(actionType)),
	)
	return booked, nil
}

// bookedJobs are the follow-ups for a completed booking
func bookedJobs(b *repository.ConfirmedBooking, amount string) []jobs.Job {
	base := jobs.Job{
		CompanyID:   b.CompanyID,
		EventID:     b.EventID,
		UserID:      b.UserID,
		ActionID:    b.ActionID,
		TicketCount: b.TicketCount,
		Amount:      amount,
	}
	conf, crm := base, base
	conf.Type = jobs.TypeSendEventConf
	crm.Type = jobs.TypeCRMTicketsBooked
	return []jobs.Job{conf, crm}
}
