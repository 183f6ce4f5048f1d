package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus is the lifecycle state of a ticket
type TicketStatus string

const (
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusBooked    TicketStatus = "booked"
	TicketStatusPaid      TicketStatus = "paid"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// validTicketTransitions maps a status to the statuses it may move to
var validTicketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusReserved:  {TicketStatusBooked, TicketStatusPaid, TicketStatusCancelled},
	TicketStatusBooked:    {TicketStatusCancelled},
	TicketStatusPaid:      {TicketStatusCancelled},
	TicketStatusCancelled: {},
}

// IsValid reports whether s is a known status
func (s TicketStatus) IsValid() bool {
	_, ok := validTicketTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCancelled
}

// CanTransitionTo reports whether moving from s to target is allowed
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	for _, allowed := range validTicketTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo returns ErrInvalidTransition when the move is not allowed
func (s TicketStatus) TransitionTo(target TicketStatus) error {
	if !s.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, target)
	}
	return nil
}

// Ticket is one seat (or slots_used seats) held against an event
type Ticket struct {
	ID            int64               `json:"id"`
	EventID       int64               `json:"event_id"`
	TicketTypeID  int64               `json:"ticket_type_id"`
	UserID        *int64              `json:"user_id,omitempty"`
	FirstName     *string             `json:"first_name,omitempty"`
	LastName      *string             `json:"last_name,omitempty"`
	Email         *string             `json:"email,omitempty"`
	ExtraInfo     *string             `json:"extra_info,omitempty"`
	Price         decimal.NullDecimal `json:"price"`
	ExtraDonated  decimal.NullDecimal `json:"extra_donated"`
	Status        TicketStatus        `json:"status"`
	ReserveAction int64               `json:"reserve_action"`
	BookedAction  *int64              `json:"booked_action,omitempty"`
	CreatedTS     time.Time           `json:"created_ts"`
}

// TicketHolder describes the person a ticket is for. All fields are optional.
type TicketHolder struct {
	FirstName string `json:"first_name" binding:"max=255"`
	LastName  string `json:"last_name" binding:"max=255"`
	Email     string `json:"email" binding:"omitempty,email,max=255"`
	ExtraInfo string `json:"extra_info" binding:"max=2000"`
}
