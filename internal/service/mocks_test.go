package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/gateway"
	"github.com/nosht/nosht/internal/jobs"
	"github.com/nosht/nosht/internal/repository"
)

func intPtr(v int) *int { return &v }

func optInt(v any) *int {
	if v == nil {
		return nil
	}
	return v.(*int)
}

type mockEventRepo struct{ mock.Mock }

func (m *mockEventRepo) GetByID(ctx context.Context, companyID, eventID int64) (*domain.Event, error) {
	args := m.Called(ctx, companyID, eventID)
	e, _ := args.Get(0).(*domain.Event)
	return e, args.Error(1)
}

func (m *mockEventRepo) GetTicketType(ctx context.Context, eventID, ticketTypeID int64) (*domain.TicketType, error) {
	args := m.Called(ctx, eventID, ticketTypeID)
	t, _ := args.Get(0).(*domain.TicketType)
	return t, args.Error(1)
}

func (m *mockEventRepo) ListTicketTypes(ctx context.Context, eventID int64) ([]domain.TicketType, error) {
	args := m.Called(ctx, eventID)
	t, _ := args.Get(0).([]domain.TicketType)
	return t, args.Error(1)
}

func (m *mockEventRepo) CheckTicketsRemaining(ctx context.Context, eventID int64, ttl time.Duration) (*int, error) {
	args := m.Called(ctx, eventID, ttl)
	return optInt(args.Get(0)), args.Error(1)
}

func (m *mockEventRepo) SetTicketLimit(ctx context.Context, in repository.SetTicketLimitParams) (*int, error) {
	args := m.Called(ctx, in)
	return optInt(args.Get(0)), args.Error(1)
}

func (m *mockEventRepo) ReplaceTicketTypes(ctx context.Context, in repository.ReplaceTicketTypesParams) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockEventRepo) EventsWithStaleReservations(ctx context.Context, ttl time.Duration, limit int) ([]repository.StaleEvent, error) {
	args := m.Called(ctx, ttl, limit)
	stale, _ := args.Get(0).([]repository.StaleEvent)
	return stale, args.Error(1)
}

type mockBookingRepo struct{ mock.Mock }

func (m *mockBookingRepo) CreateReservation(ctx context.Context, in repository.CreateReservationParams) (int64, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBookingRepo) CancelReservation(ctx context.Context, in repository.CancelReservationParams) (int, error) {
	args := m.Called(ctx, in)
	return args.Int(0), args.Error(1)
}

func (m *mockBookingRepo) ConfirmTicketPurchase(ctx context.Context, in repository.ConfirmPurchaseParams) (*repository.ConfirmedBooking, error) {
	args := m.Called(ctx, in)
	b, _ := args.Get(0).(*repository.ConfirmedBooking)
	return b, args.Error(1)
}

func (m *mockBookingRepo) BookReserved(ctx context.Context, in repository.BookReservedParams) (*repository.ConfirmedBooking, error) {
	args := m.Called(ctx, in)
	b, _ := args.Get(0).(*repository.ConfirmedBooking)
	return b, args.Error(1)
}

func (m *mockBookingRepo) GetTicket(ctx context.Context, eventID, ticketID int64) (*repository.TicketDetail, error) {
	args := m.Called(ctx, eventID, ticketID)
	t, _ := args.Get(0).(*repository.TicketDetail)
	return t, args.Error(1)
}

func (m *mockBookingRepo) CancelTicket(ctx context.Context, in repository.CancelTicketParams) error {
	return m.Called(ctx, in).Error(0)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) GetByID(ctx context.Context, companyID, userID int64) (*domain.User, error) {
	args := m.Called(ctx, companyID, userID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) UpsertGuests(ctx context.Context, companyID int64, holders []domain.TicketHolder) (map[string]int64, error) {
	args := m.Called(ctx, companyID, holders)
	ids, _ := args.Get(0).(map[string]int64)
	return ids, args.Error(1)
}

type mockCompanyRepo struct{ mock.Mock }

func (m *mockCompanyRepo) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*domain.Company)
	return c, args.Error(1)
}

type mockDonationRepo struct{ mock.Mock }

func (m *mockDonationRepo) GetOption(ctx context.Context, companyID, optionID int64) (*domain.DonationOption, error) {
	args := m.Called(ctx, companyID, optionID)
	o, _ := args.Get(0).(*domain.DonationOption)
	return o, args.Error(1)
}

func (m *mockDonationRepo) CreatePrepareAction(ctx context.Context, in repository.PrepareDonationParams) (int64, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockDonationRepo) ConfirmDonation(ctx context.Context, in repository.ConfirmDonationParams) (*repository.ConfirmedDonation, error) {
	args := m.Called(ctx, in)
	d, _ := args.Get(0).(*repository.ConfirmedDonation)
	return d, args.Error(1)
}

type mockWaitingListRepo struct{ mock.Mock }

func (m *mockWaitingListRepo) Add(ctx context.Context, eventID, userID int64) (bool, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWaitingListRepo) Remove(ctx context.Context, eventID, userID int64) (bool, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWaitingListRepo) ListForEvent(ctx context.Context, eventID int64) ([]domain.WaitingListEntry, error) {
	args := m.Called(ctx, eventID)
	e, _ := args.Get(0).([]domain.WaitingListEntry)
	return e, args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreatePaymentIntent(ctx context.Context, req *gateway.PaymentIntentRequest) (*gateway.PaymentIntentResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*gateway.PaymentIntentResponse)
	return r, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*gateway.RefundResponse)
	return r, args.Error(1)
}

func (m *mockGateway) GetCardDetails(ctx context.Context, secretKey, paymentMethodID string) (*gateway.CardDetails, error) {
	args := m.Called(ctx, secretKey, paymentMethodID)
	c, _ := args.Get(0).(*gateway.CardDetails)
	return c, args.Error(1)
}

func (m *mockGateway) ParseWebhook(payload []byte, signatureHeader, webhookSecret string) (*gateway.WebhookEvent, error) {
	args := m.Called(payload, signatureHeader, webhookSecret)
	e, _ := args.Get(0).(*gateway.WebhookEvent)
	return e, args.Error(1)
}

func (m *mockGateway) Name() string { return "mock" }

// recordingQueue collects enqueued jobs
type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, js ...jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, js...)
	return nil
}

func (q *recordingQueue) types() []jobs.Type {
	out := make([]jobs.Type, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.Type)
	}
	return out
}

type mockPromoter struct{ mock.Mock }

func (m *mockPromoter) Add(ctx context.Context, caller Caller, eventID int64) (bool, error) {
	args := m.Called(ctx, caller, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPromoter) RemoveWithToken(ctx context.Context, companyID, eventID int64, token string) error {
	return m.Called(ctx, companyID, eventID, token).Error(0)
}

func (m *mockPromoter) Promote(ctx context.Context, companyID, eventID int64) (int, error) {
	args := m.Called(ctx, companyID, eventID)
	return args.Int(0), args.Error(1)
}
