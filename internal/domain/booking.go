package domain

import (
	"github.com/shopspring/decimal"
)

// Payment intent purposes, carried in the provider metadata
const (
	PurposeBuyTickets = "buy-tickets"
	PurposeDonate     = "donate"
)

// Payment intent metadata keys
const (
	MetaPurpose         = "purpose"
	MetaReserveActionID = "reserve_action_id"
	MetaPrepareActionID = "prepare_action_id"
	MetaEventID         = "event_id"
	MetaUserID          = "user_id"
	MetaCompanyID       = "company_id"
)

// BookingClaims is the payload sealed into a booking token
type BookingClaims struct {
	UserID      int64  `json:"user_id"`
	ActionID    int64  `json:"action_id"`
	EventID     int64  `json:"event_id"`
	PriceCent   int64  `json:"price_cent"`
	TicketCount int    `json:"ticket_count"`
	EventName   string `json:"event_name"`
}

// IsFree reports whether the reservation needs no payment
func (c *BookingClaims) IsFree() bool {
	return c.PriceCent == 0
}

// ReservationPrice holds per-ticket prices for a reservation
type ReservationPrice struct {
	ItemPrice        decimal.Decimal
	ItemExtraDonated decimal.Decimal
	TicketCount      int
}

// PriceReservation prices count tickets of tt. When coverCosts is requested and the category sets a
// percentage, each ticket carries extra = round(price * pct / 100, 2).
func PriceReservation(tt *TicketType, coverCostsPct decimal.NullDecimal, coverCosts bool, count int) ReservationPrice {
	p := ReservationPrice{
		ItemPrice:        tt.UnitPrice(),
		ItemExtraDonated: decimal.Zero,
		TicketCount:      count,
	}
	if coverCosts && coverCostsPct.Valid && coverCostsPct.Decimal.IsPositive() && p.ItemPrice.IsPositive() {
		p.ItemExtraDonated = p.ItemPrice.Mul(coverCostsPct.Decimal).Div(decimal.NewFromInt(100)).Round(2)
	}
	return p
}

// ExtraDonated is the cover-costs donation across all tickets
func (p ReservationPrice) ExtraDonated() decimal.Decimal {
	return p.ItemExtraDonated.Mul(decimal.NewFromInt(int64(p.TicketCount)))
}

// Total is (price + extra) * count
func (p ReservationPrice) Total() decimal.Decimal {
	return p.ItemPrice.Add(p.ItemExtraDonated).Mul(decimal.NewFromInt(int64(p.TicketCount)))
}

// TotalCents is Total in the currency's minor unit
func (p ReservationPrice) TotalCents() int64 {
	return ToCents(p.Total())
}

// IsFree reports whether nothing is payable
func (p ReservationPrice) IsFree() bool {
	return p.Total().IsZero()
}

// ToCents converts a major-unit amount to minor units, rounding half away from zero
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts minor units to a major-unit amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ReserveRequest asks to hold tickets of one type for an event
type ReserveRequest struct {
	EventID      int64
	TicketTypeID int64
	Tickets      []TicketHolder
	CoverCosts   bool
}

// Reservation is the result of a successful hold
type Reservation struct {
	BookingToken string          `json:"booking_token"`
	TicketCount  int             `json:"ticket_count"`
	ItemPrice    decimal.Decimal `json:"item_price"`
	ExtraDonated decimal.Decimal `json:"extra_donated"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Timeout      int64           `json:"timeout"` // unix seconds when the hold lapses
	ClientSecret *string         `json:"client_secret"`
	ActionID     int64           `json:"-"`
}

// NewTicket is one row to insert for a reservation
type NewTicket struct {
	UserID       *int64
	FirstName    string
	LastName     string
	Email        string
	ExtraInfo    string
	Price        decimal.NullDecimal
	ExtraDonated decimal.NullDecimal
}
