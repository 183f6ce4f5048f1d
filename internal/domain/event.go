package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event statuses
const (
	EventStatusPending   = "pending"
	EventStatusPublished = "published"
	EventStatusSuspended = "suspended"
)

// Event is a bookable event. TicketLimit nil means unlimited capacity.
type Event struct {
	ID                   int64               `json:"id"`
	CompanyID            int64               `json:"company_id"`
	CategoryID           int64               `json:"category_id"`
	HostID               int64               `json:"host_id"`
	Name                 string              `json:"name"`
	Slug                 string              `json:"slug"`
	Status               string              `json:"status"`
	Public               bool                `json:"public"`
	AllowTickets         bool                `json:"allow_tickets"`
	AllowDonations       bool                `json:"allow_donations"`
	ExternalTicketURL    *string             `json:"external_ticket_url,omitempty"`
	StartTS              time.Time           `json:"start_ts"`
	Duration             *time.Duration      `json:"duration,omitempty"`
	LocationName         *string             `json:"location_name,omitempty"`
	TicketLimit          *int                `json:"ticket_limit,omitempty"`
	TicketsTaken         int                 `json:"tickets_taken"`
	CoverCostsPercentage decimal.NullDecimal `json:"cover_costs_percentage"`
}

// CheckBookable returns ErrEventNotBookable unless tickets can be reserved for the event
func (e *Event) CheckBookable() error {
	if e.Status != EventStatusPublished || !e.AllowTickets {
		return ErrEventNotBookable
	}
	if e.ExternalTicketURL != nil && *e.ExternalTicketURL != "" {
		return ErrEventNotBookable
	}
	return nil
}

// IsManagedBy reports whether the user may edit the event: its host, or an admin of its company
func (e *Event) IsManagedBy(userID, companyID int64, role string) bool {
	if companyID != e.CompanyID {
		return false
	}
	return role == RoleAdmin || (role == RoleHost && userID == e.HostID)
}

// Ticket type modes
const (
	TicketModeTicket   = "ticket"
	TicketModeDonation = "donation"
)

// TicketType is a priced class of ticket. A null Price means free.
type TicketType struct {
	ID           int64               `json:"id"`
	EventID      int64               `json:"event_id"`
	Name         string              `json:"name"`
	Price        decimal.NullDecimal `json:"price"`
	SlotsUsed    int                 `json:"slots_used"`
	Mode         string              `json:"mode"`
	CustomAmount bool                `json:"custom_amount"`
	Active       bool                `json:"active"`
}

// IsReservable reports whether tickets of this type can be reserved
func (t *TicketType) IsReservable() bool {
	return t.Active && t.Mode == TicketModeTicket
}

// UnitPrice returns the price, zero when free
func (t *TicketType) UnitPrice() decimal.Decimal {
	if !t.Price.Valid {
		return decimal.Zero
	}
	return t.Price.Decimal
}

// ValidateTicketTypes checks that at least one active ticket-mode type remains
func ValidateTicketTypes(types []TicketType) error {
	for _, t := range types {
		if t.IsReservable() {
			return nil
		}
	}
	return ErrNoActiveTicketType
}
