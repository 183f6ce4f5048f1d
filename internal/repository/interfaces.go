package repository

import (
	"context"
	"time"

	"github.com/nosht/nosht/internal/domain"
)

// CompanyRepository reads tenant settings
type CompanyRepository interface {
	// GetByID returns nil, nil when the company does not exist
	GetByID(ctx context.Context, id int64) (*domain.Company, error)
}

// UserRepository manages accounts
type UserRepository interface {
	GetByID(ctx context.Context, companyID, userID int64) (*domain.User, error)
	// UpsertGuests creates a guest per unique email, keeping names already on file, and returns
	// the user id for each lower-cased email
	UpsertGuests(ctx context.Context, companyID int64, holders []domain.TicketHolder) (map[string]int64, error)
}

// EventRepository reads events and runs capacity recomputation
type EventRepository interface {
	// GetByID returns nil, nil when the event is not in the company
	GetByID(ctx context.Context, companyID, eventID int64) (*domain.Event, error)
	// GetTicketType returns nil, nil when the type does not belong to the event
	GetTicketType(ctx context.Context, eventID, ticketTypeID int64) (*domain.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID int64) ([]domain.TicketType, error)
	// CheckTicketsRemaining expires holds older than ttl, recounts tickets_taken and returns the
	// remaining capacity, nil when unlimited
	CheckTicketsRemaining(ctx context.Context, eventID int64, ttl time.Duration) (*int, error)
	// SetTicketLimit changes the limit and returns the new remaining capacity.
	// domain.ErrTicketLimitTooLow when the limit is below tickets_taken.
	SetTicketLimit(ctx context.Context, in SetTicketLimitParams) (*int, error)
	ReplaceTicketTypes(ctx context.Context, in ReplaceTicketTypesParams) error
	// EventsWithStaleReservations lists events holding reservations older than ttl
	EventsWithStaleReservations(ctx context.Context, ttl time.Duration, limit int) ([]StaleEvent, error)
}

// BookingRepository owns the ticket state transitions. Every method runs in one transaction.
type BookingRepository interface {
	// CreateReservation records a reserve-tickets action and its tickets.
	// domain.ErrInsufficientTickets when the capacity constraint fires.
	CreateReservation(ctx context.Context, in CreateReservationParams) (int64, error)
	// CancelReservation deletes still-reserved tickets.
	// domain.ErrReservationNotPending when nothing was reserved.
	CancelReservation(ctx context.Context, in CancelReservationParams) (int, error)
	// ConfirmTicketPurchase moves reserved tickets to paid under a row lock.
	// domain.ErrAlreadyProcessed when they are no longer reserved.
	ConfirmTicketPurchase(ctx context.Context, in ConfirmPurchaseParams) (*ConfirmedBooking, error)
	// BookReserved moves reserved tickets to booked without payment.
	// domain.ErrReservationNotPending when they are no longer reserved.
	BookReserved(ctx context.Context, in BookReservedParams) (*ConfirmedBooking, error)
	// GetTicket returns nil, nil when the ticket is not on the event
	GetTicket(ctx context.Context, eventID, ticketID int64) (*TicketDetail, error)
	// CancelTicket cancels a booked or paid ticket
	CancelTicket(ctx context.Context, in CancelTicketParams) error
}

// DonationRepository manages donation options and the donate-prepare/donate actions
type DonationRepository interface {
	// GetOption returns nil, nil when the option is not live in the company
	GetOption(ctx context.Context, companyID, optionID int64) (*domain.DonationOption, error)
	CreatePrepareAction(ctx context.Context, in PrepareDonationParams) (int64, error)
	// ConfirmDonation records the donation under a lock on the prepare action.
	// domain.ErrAlreadyProcessed when the prepare action is already complete.
	ConfirmDonation(ctx context.Context, in ConfirmDonationParams) (*ConfirmedDonation, error)
}

// WaitingListRepository manages waiting list entries
type WaitingListRepository interface {
	// Add returns false when the user was already waiting
	Add(ctx context.Context, eventID, userID int64) (bool, error)
	// Remove returns false when there was nothing to remove
	Remove(ctx context.Context, eventID, userID int64) (bool, error)
	ListForEvent(ctx context.Context, eventID int64) ([]domain.WaitingListEntry, error)
}

// CreateReservationParams is the input for BookingRepository.CreateReservation
type CreateReservationParams struct {
	CompanyID    int64
	UserID       int64
	EventID      int64
	TicketTypeID int64
	TTL          time.Duration
	Tickets      []domain.NewTicket
	Extra        any
}

// CancelReservationParams is the input for BookingRepository.CancelReservation
type CancelReservationParams struct {
	CompanyID       int64
	UserID          int64
	EventID         int64
	ReserveActionID int64
	TTL             time.Duration
}

// ConfirmPurchaseParams is the input for BookingRepository.ConfirmTicketPurchase
type ConfirmPurchaseParams struct {
	CompanyID       int64
	ReserveActionID int64
	Charge          domain.ChargeDetails
	TTL             time.Duration
}

// BookReservedParams is the input for BookingRepository.BookReserved
type BookReservedParams struct {
	CompanyID       int64
	ActorUserID     int64
	BuyerUserID     int64
	EventID         int64
	ReserveActionID int64
	ActionType      domain.ActionType
	TTL             time.Duration
}

// ConfirmedBooking describes tickets that were just booked
type ConfirmedBooking struct {
	ActionID        int64
	ReserveActionID int64
	CompanyID       int64
	EventID         int64
	UserID          int64
	TicketCount     int
}

// TicketDetail is a ticket with the payment that booked it
type TicketDetail struct {
	domain.Ticket
	PaymentIntentID string
}

// CancelTicketParams is the input for BookingRepository.CancelTicket
type CancelTicketParams struct {
	CompanyID    int64
	ActorUserID  int64
	EventID      int64
	TicketID     int64
	TTL          time.Duration
	Cancellation domain.TicketCancellation
}

// SetTicketLimitParams is the input for EventRepository.SetTicketLimit
type SetTicketLimitParams struct {
	CompanyID   int64
	ActorUserID int64
	EventID     int64
	TicketLimit *int
	TTL         time.Duration
}

// ReplaceTicketTypesParams is the input for EventRepository.ReplaceTicketTypes. Types with an ID
// are updated, types without are inserted and existing types left out are deactivated.
type ReplaceTicketTypesParams struct {
	CompanyID   int64
	ActorUserID int64
	EventID     int64
	TicketTypes []domain.TicketType
}

// PrepareDonationParams is the input for DonationRepository.CreatePrepareAction
type PrepareDonationParams struct {
	CompanyID int64
	UserID    int64
	EventID   int64
	Extra     domain.DonationPrepareExtra
}

// ConfirmDonationParams is the input for DonationRepository.ConfirmDonation
type ConfirmDonationParams struct {
	CompanyID       int64
	PrepareActionID int64
	Charge          domain.ChargeDetails
}

// StaleEvent identifies an event holding expired reservations
type StaleEvent struct {
	CompanyID int64
	EventID   int64
}

// ConfirmedDonation describes a donation that was just recorded
type ConfirmedDonation struct {
	Donation  domain.Donation
	CompanyID int64
	UserID    int64
	EventID   int64
}
