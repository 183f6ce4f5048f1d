package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound          = errors.New("event not found")
	ErrEventNotBookable       = errors.New("event is not bookable")
	ErrTicketTypeNotFound     = errors.New("ticket type not found")
	ErrNoTickets              = errors.New("at least one ticket must be requested")
	ErrTooManyTickets         = errors.New("too many tickets requested")
	ErrInsufficientTickets    = errors.New("insufficient tickets remaining")
	ErrInvalidToken           = errors.New("invalid or expired booking token")
	ErrReservationNotPending  = errors.New("reservation is no longer pending")
	ErrPaidBookingNotAllowed  = errors.New("paid reservations must be completed through payment")
	ErrAlreadyProcessed       = errors.New("payment already processed")
	ErrInvalidWebhook         = errors.New("invalid webhook payload")
	ErrPaymentProvider        = errors.New("payment provider error")
	ErrForbidden              = errors.New("not permitted")
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrInvalidTransition      = errors.New("invalid ticket status transition")
	ErrTicketLimitTooLow      = errors.New("ticket limit is below the number of tickets already taken")
	ErrNoActiveTicketType     = errors.New("at least one active ticket type is required")
	ErrDonationOptionNotFound = errors.New("donation option not found")
	ErrDonationsNotAllowed    = errors.New("donations are not enabled")
	ErrCompanyNotFound        = errors.New("company not found")
	ErrRefundNotPossible      = errors.New("refund is not possible for this ticket")
	ErrGiftAidDetailsRequired = errors.New("gift aid requires donor name and address")
)

// TicketsRemainingError is the soft capacity conflict: the request does not fit but the caller can
// retry with at most Remaining tickets.
type TicketsRemainingError struct {
	Remaining int
}

func (e *TicketsRemainingError) Error() string {
	return fmt.Sprintf("only %d tickets remaining", e.Remaining)
}

// AsTicketsRemaining unwraps a TicketsRemainingError from err
func AsTicketsRemaining(err error) (*TicketsRemainingError, bool) {
	var tre *TicketsRemainingError
	if errors.As(err, &tre) {
		return tre, true
	}
	return nil, false
}
