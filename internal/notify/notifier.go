// Package notify turns queued booking jobs into emails and CRM activity
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/jobs"
)

var errMissingRecord = errors.New("referenced record not found")

// EventGetter reads events
type EventGetter interface {
	GetByID(ctx context.Context, companyID, eventID int64) (*domain.Event, error)
}

// UserGetter reads users
type UserGetter interface {
	GetByID(ctx context.Context, companyID, userID int64) (*domain.User, error)
}

// CompanyGetter reads companies
type CompanyGetter interface {
	GetByID(ctx context.Context, id int64) (*domain.Company, error)
}

// UnsubscribeSigner signs waiting list removal links
type UnsubscribeSigner interface {
	Sign(eventID, userID int64) (string, error)
}

// Notifier handles notification and CRM jobs
type Notifier struct {
	events    EventGetter
	users     UserGetter
	companies CompanyGetter
	mailer    Mailer
	crm       CRMClient
	signer    UnsubscribeSigner
	baseURL   string
}

// NewNotifier creates a new Notifier. baseURL prefixes links in emails.
func NewNotifier(events EventGetter, users UserGetter, companies CompanyGetter, mailer Mailer, crm CRMClient,
	signer UnsubscribeSigner, baseURL string) *Notifier {
	if crm == nil {
		crm = NewNoOpCRMClient()
	}
	return &Notifier{
		events:    events,
		users:     users,
		companies: companies,
		mailer:    mailer,
		crm:       crm,
		signer:    signer,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Register binds every notification job type on d
func (n *Notifier) Register(d *jobs.Dispatcher) {
	d.Register(jobs.TypeSendEventConf, jobs.HandlerFunc(n.SendEventConf))
	d.Register(jobs.TypeSendDonationThanks, jobs.HandlerFunc(n.SendDonationThanks))
	d.Register(jobs.TypeWaitingListAvailable, jobs.HandlerFunc(n.SendWaitingListAvailable))
	d.Register(jobs.TypeCRMTicketsBooked, jobs.HandlerFunc(n.CRMTicketsBooked))
	d.Register(jobs.TypeCRMDonation, jobs.HandlerFunc(n.CRMDonation))
}

func (n *Notifier) eventURL(e *domain.Event) string {
	return fmt.Sprintf("%s/events/%d/%s", n.baseURL, e.ID, e.Slug)
}

// load fetches the company, event and user a job refers to. Missing event or user ids are skipped.
func (n *Notifier) load(ctx context.Context, job jobs.Job) (*domain.Company, *domain.Event, *domain.User, error) {
	company, err := n.companies.GetByID(ctx, job.CompanyID)
	if err != nil {
		return nil, nil, nil, err
	}
	if company == nil {
		return nil, nil, nil, fmt.Errorf("%w: company %d", errMissingRecord, job.CompanyID)
	}

	var event *domain.Event
	if job.EventID != 0 {
		if event, err = n.events.GetByID(ctx, job.CompanyID, job.EventID); err != nil {
			return nil, nil, nil, err
		}
		if event == nil {
			return nil, nil, nil, fmt.Errorf("%w: event %d", errMissingRecord, job.EventID)
		}
	}

	var user *domain.User
	if job.UserID != 0 {
		if user, err = n.users.GetByID(ctx, job.CompanyID, job.UserID); err != nil {
			return nil, nil, nil, err
		}
		if user == nil {
			return nil, nil, nil, fmt.Errorf("%w: user %d", errMissingRecord, job.UserID)
		}
	}
	return company, event, user, nil
}

func firstName(u *domain.User) string {
	if u == nil || u.FirstName == nil {
		return ""
	}
	return *u.FirstName
}

func lastName(u *domain.User) string {
	if u == nil || u.LastName == nil {
		return ""
	}
	return *u.LastName
}

// SendEventConf emails the booker a confirmation
func (n *Notifier) SendEventConf(ctx context.Context, job jobs.Job) error {
	company, event, user, err := n.load(ctx, job)
	if err != nil {
		return err
	}
	if event == nil || user == nil {
		return fmt.Errorf("%w: confirmation needs event and user", errMissingRecord)
	}

	return n.mailer.SendEventConfirmation(ctx, user.Email, EventConfirmation{
		FirstName:   firstName(user),
		CompanyName: company.Name,
		EventName:   event.Name,
		EventURL:    n.eventURL(event),
		StartTS:     event.StartTS.Format("Mon 2 Jan 2006, 15:04"),
		TicketCount: job.TicketCount,
		Paid:        job.Amount != "",
	})
}

// SendDonationThanks emails the donor a receipt
func (n *Notifier) SendDonationThanks(ctx context.Context, job jobs.Job) error {
	company, _, user, err := n.load(ctx, job)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: donation receipt needs a user", errMissingRecord)
	}

	return n.mailer.SendDonationThanks(ctx, user.Email, DonationThanks{
		FirstName:   firstName(user),
		CompanyName: company.Name,
		Amount:      formatAmount(job.Amount, company.Currency),
	})
}

// SendWaitingListAvailable emails one waiting user. The job carries the address so a promoted
// batch needs no extra user reads.
func (n *Notifier) SendWaitingListAvailable(ctx context.Context, job jobs.Job) error {
	company, event, _, err := n.load(ctx, jobs.Job{CompanyID: job.CompanyID, EventID: job.EventID})
	if err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("%w: waiting list email needs an event", errMissingRecord)
	}

	tok, err := n.signer.Sign(event.ID, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to sign unsubscribe link: %w", err)
	}

	return n.mailer.SendWaitingListAvailable(ctx, job.Email, WaitingListAvailable{
		FirstName:      job.FirstName,
		CompanyName:    company.Name,
		EventName:      event.Name,
		EventURL:       n.eventURL(event),
		UnsubscribeURL: fmt.Sprintf("%s/api/companies/%d/events/%d/waiting-list/remove?token=%s", n.baseURL, company.ID, event.ID, tok),
	})
}

// CRMTicketsBooked records the booking against the buyer in Donorfy
func (n *Notifier) CRMTicketsBooked(ctx context.Context, job jobs.Job) error {
	company, event, user, err := n.load(ctx, job)
	if err != nil {
		return err
	}
	creds := DonorfyCredentials{APIKey: company.DonorfyAPIKey, AccessKey: company.DonorfyAccessKey}
	if !creds.Configured() || event == nil || user == nil {
		return nil
	}

	amount, _ := decimal.NewFromString(orZero(job.Amount))
	return n.crm.RecordActivity(ctx, creds, Activity{
		Email:        user.Email,
		FirstName:    firstName(user),
		LastName:     lastName(user),
		ActivityType: ActivityEventBooked,
		ActivityDate: time.Now().UTC().Format(time.RFC3339),
		Campaign:     event.Name,
		Amount:       amount.InexactFloat64(),
		Quantity:     job.TicketCount,
		Notes:        fmt.Sprintf("action %d", job.ActionID),
	})
}

// CRMDonation records a donation in Donorfy
func (n *Notifier) CRMDonation(ctx context.Context, job jobs.Job) error {
	company, event, user, err := n.load(ctx, job)
	if err != nil {
		return err
	}
	creds := DonorfyCredentials{APIKey: company.DonorfyAPIKey, AccessKey: company.DonorfyAccessKey}
	if !creds.Configured() || user == nil {
		return nil
	}

	a := Activity{
		Email:        user.Email,
		FirstName:    firstName(user),
		LastName:     lastName(user),
		ActivityType: ActivityDonation,
		ActivityDate: time.Now().UTC().Format(time.RFC3339),
		Notes:        fmt.Sprintf("action %d", job.ActionID),
	}
	if event != nil {
		a.Campaign = event.Name
	}
	if amount, err := decimal.NewFromString(orZero(job.Amount)); err == nil {
		a.Amount = amount.InexactFloat64()
	}
	return n.crm.RecordActivity(ctx, creds, a)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func formatAmount(amount, currency string) string {
	d, err := decimal.NewFromString(orZero(amount))
	if err != nil {
		return amount
	}
	symbol := map[string]string{"gbp": "£", "usd": "$", "eur": "€"}[strings.ToLower(currency)]
	if symbol == "" {
		return d.StringFixed(2) + " " + strings.ToUpper(currency)
	}
	return symbol + d.StringFixed(2)
}
