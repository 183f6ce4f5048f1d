package domain

import (
	"encoding/json"
	"time"
)

// ActionType names an entry in the append-only actions log
type ActionType string

const (
	ActionReserveTickets       ActionType = "reserve-tickets"
	ActionCancelReservedTicket ActionType = "cancel-reserved-tickets"
	ActionBuyTickets           ActionType = "buy-tickets"
	ActionBookFreeTickets      ActionType = "book-free-tickets"
	ActionBookOfflineTickets   ActionType = "book-offline-tickets"
	ActionCancelBookedTickets  ActionType = "cancel-booked-tickets"
	ActionDonatePrepare        ActionType = "donate-prepare"
	ActionDonate               ActionType = "donate"
	ActionEditEvent            ActionType = "edit-event"
	ActionEditTicketTypes      ActionType = "edit-ticket-types"
	ActionWaitingListAdd       ActionType = "waiting-list-add"
)

// Action is one row of the actions log. Rows are never updated except for the "complete" flag on
// donate-prepare actions.
type Action struct {
	ID        int64           `json:"id"`
	CompanyID int64           `json:"company_id"`
	UserID    *int64          `json:"user_id,omitempty"`
	EventID   *int64          `json:"event_id,omitempty"`
	Type      ActionType      `json:"type"`
	TS        time.Time       `json:"ts"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

// NewAction is the input for inserting an action
type NewAction struct {
	CompanyID int64
	UserID    *int64
	EventID   *int64
	Type      ActionType
	Extra     any
}

// ChargeDetails is recorded as the extra payload of buy-tickets and donate actions
type ChargeDetails struct {
	NewCard         bool   `json:"new_card"`
	ChargeID        string `json:"charge_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	BrandLast4      string `json:"brand_last4,omitempty"`
	CardExpiry      string `json:"card_expiry,omitempty"`
}

// TicketCancellation is recorded on cancel-booked-tickets actions
type TicketCancellation struct {
	TicketID     int64  `json:"ticket_id"`
	RefundAmount string `json:"refund_amount,omitempty"`
	RefundID     string `json:"refund_id,omitempty"`
}
