package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/repository"
)

// ReservationService holds, releases and completes ticket reservations
type ReservationService interface {
	// Reserve holds tickets and returns a booking token, plus a client secret when payment is due
	Reserve(ctx context.Context, caller Caller, req *domain.ReserveRequest) (*domain.Reservation, error)
	// CancelReservation releases the tickets held by a booking token
	CancelReservation(ctx context.Context, caller Caller, bookingToken string) error
	// BookFree completes a free reservation, or a paid one booked offline by the event host
	BookFree(ctx context.Context, caller Caller, bookingToken string) (*repository.ConfirmedBooking, error)
}

// WebhookService finalizes payments reported by the payment provider
type WebhookService interface {
	// HandleStripeWebhook verifies and applies one webhook delivery for a company
	HandleStripeWebhook(ctx context.Context, companyID int64, payload []byte, signature string) (*WebhookResult, error)
}

// WaitingListService manages waiting lists and notifies waiting users when capacity frees up
type WaitingListService interface {
	// Add puts the caller on the event waiting list, returning false if already there
	Add(ctx context.Context, caller Caller, eventID int64) (bool, error)
	// RemoveWithToken removes the user named by a signed unsubscribe token
	RemoveWithToken(ctx context.Context, companyID, eventID int64, token string) error
	// Promote recomputes capacity and notifies every waiting user if tickets are available
	Promote(ctx context.Context, companyID, eventID int64) (int, error)
}

// EventService covers host-side event operations that affect capacity
type EventService interface {
	// TicketsRemaining returns the remaining capacity, nil when unlimited
	TicketsRemaining(ctx context.Context, companyID, eventID int64) (*int, error)
	// SetTicketLimit changes the event capacity, nil for unlimited
	SetTicketLimit(ctx context.Context, caller Caller, eventID int64, limit *int) (*int, error)
	// UpdateTicketTypes replaces the ticket types of an event
	UpdateTicketTypes(ctx context.Context, caller Caller, eventID int64, types []domain.TicketType) error
	// CancelTicket cancels a booked ticket, refunding refundAmount first when given
	CancelTicket(ctx context.Context, caller Caller, eventID, ticketID int64, refundAmount *decimal.Decimal) error
}

// DonationService starts donations that the webhook later completes
type DonationService interface {
	// Prepare records a donate-prepare action and creates the payment intent
	Prepare(ctx context.Context, caller Caller, req *PrepareDonationRequest) (*DonationIntent, error)
}
