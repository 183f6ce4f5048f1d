package domain

import "github.com/shopspring/decimal"

// DonationOption is a preset donation amount offered by a category
type DonationOption struct {
	ID         int64           `json:"id"`
	CategoryID int64           `json:"category_id"`
	CompanyID  int64           `json:"company_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Live       bool            `json:"live"`
}

// GiftAid holds the donor details needed to claim UK Gift Aid
type GiftAid struct {
	Title     string `json:"title" binding:"max=31"`
	FirstName string `json:"first_name" binding:"required,max=255"`
	LastName  string `json:"last_name" binding:"required,max=255"`
	Address   string `json:"address" binding:"required,max=255"`
	City      string `json:"city" binding:"required,max=255"`
	Postcode  string `json:"postcode" binding:"required,max=31"`
}

// DonationPrepareExtra is stored on the donate-prepare action. Complete flips to true exactly once,
// when the payment webhook records the donation.
type DonationPrepareExtra struct {
	DonationOptionID int64    `json:"donation_option_id"`
	EventID          int64    `json:"event_id"`
	Amount           string   `json:"amount"`
	GiftAid          bool     `json:"gift_aid"`
	GiftAidDetails   *GiftAid `json:"gift_aid_details,omitempty"`
	PaymentIntentID  string   `json:"payment_intent_id,omitempty"`
	Complete         bool     `json:"complete"`
}

// Donation is a completed donation
type Donation struct {
	ID               int64           `json:"id"`
	DonationOptionID *int64          `json:"donation_option_id,omitempty"`
	TicketTypeID     *int64          `json:"ticket_type_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	GiftAid          bool            `json:"gift_aid"`
	Title            *string         `json:"title,omitempty"`
	FirstName        *string         `json:"first_name,omitempty"`
	LastName         *string         `json:"last_name,omitempty"`
	Address          *string         `json:"address,omitempty"`
	City             *string         `json:"city,omitempty"`
	Postcode         *string         `json:"postcode,omitempty"`
	ActionID         int64           `json:"action_id"`
}
