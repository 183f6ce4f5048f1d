package notify

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"github.com/nosht/nosht/pkg/config"
)

// SMTPConfig holds outgoing mail settings
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
}

// SMTPConfigFrom builds an SMTPConfig from the application settings
func SMTPConfigFrom(c config.SMTPConfig) SMTPConfig {
	return SMTPConfig{
		Host:        c.Host,
		Port:        c.Port,
		Username:    c.Username,
		Password:    c.Password,
		FromAddress: c.From,
	}
}

// Mailer sends the booking emails
type Mailer interface {
	SendEventConfirmation(ctx context.Context, to string, c EventConfirmation) error
	SendDonationThanks(ctx context.Context, to string, d DonationThanks) error
	SendWaitingListAvailable(ctx context.Context, to string, w WaitingListAvailable) error
}

// EventConfirmation is the content of a booking confirmation
type EventConfirmation struct {
	FirstName   string
	CompanyName string
	EventName   string
	EventURL    string
	StartTS     string
	TicketCount int
	Paid        bool
}

// DonationThanks is the content of a donation receipt
type DonationThanks struct {
	FirstName   string
	CompanyName string
	Amount      string
	GiftAid     bool
}

// WaitingListAvailable tells a waiting user that tickets are available again
type WaitingListAvailable struct {
	FirstName      string
	CompanyName    string
	EventName      string
	EventURL       string
	UnsubscribeURL string
}

// dialer is satisfied by *gomail.Dialer
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPEmailService implements Mailer over SMTP
type SMTPEmailService struct {
	config SMTPConfig
	dialer dialer
}

// NewSMTPEmailService creates a new SMTPEmailService
func NewSMTPEmailService(config SMTPConfig) *SMTPEmailService {
	return &SMTPEmailService{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}
}

func greeting(firstName string) string {
	if firstName == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", firstName)
}

// SendEventConfirmation sends the ticket confirmation for a booking
func (s *SMTPEmailService) SendEventConfirmation(ctx context.Context, to string, c EventConfirmation) error {
	verb := "booked"
	if c.Paid {
		verb = "bought"
	}
	subject := fmt.Sprintf("%s Ticket Confirmation", c.EventName)
	if c.TicketCount > 1 {
		subject = fmt.Sprintf("%s Ticket Confirmation (%d tickets)", c.EventName, c.TicketCount)
	}

	plainBody := fmt.Sprintf(`%s

Thanks for booking with %s. You've %s %d ticket(s) for %s on %s.

Event details: %s
`, greeting(c.FirstName), c.CompanyName, verb, c.TicketCount, c.EventName, c.StartTS, c.EventURL)

	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<p>%s</p>
			<p>Thanks for booking with %s. You've %s %d ticket(s) for <strong>%s</strong> on %s.</p>
			<p><a href="%s">View event</a></p>
		</body>
		</html>
	`, html.EscapeString(greeting(c.FirstName)), html.EscapeString(c.CompanyName), verb, c.TicketCount,
		html.EscapeString(c.EventName), html.EscapeString(c.StartTS), c.EventURL)

	return s.sendEmail(ctx, to, subject, htmlBody, plainBody)
}

// SendDonationThanks sends a donation receipt
func (s *SMTPEmailService) SendDonationThanks(ctx context.Context, to string, d DonationThanks) error {
	giftAid := ""
	if d.GiftAid {
		giftAid = "\nYou've asked us to claim Gift Aid on this donation.\n"
	}
	subject := fmt.Sprintf("Thank you for your donation to %s", d.CompanyName)

	plainBody := fmt.Sprintf(`%s

Thank you for donating %s to %s.
%s`, greeting(d.FirstName), d.Amount, d.CompanyName, giftAid)

	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<p>%s</p>
			<p>Thank you for donating %s to %s.</p>
			<p>%s</p>
		</body>
		</html>
	`, html.EscapeString(greeting(d.FirstName)), html.EscapeString(d.Amount), html.EscapeString(d.CompanyName),
		html.EscapeString(giftAid))

	return s.sendEmail(ctx, to, subject, htmlBody, plainBody)
}

// SendWaitingListAvailable tells a waiting user that tickets freed up
func (s *SMTPEmailService) SendWaitingListAvailable(ctx context.Context, to string, w WaitingListAvailable) error {
	subject := fmt.Sprintf("%s - New Tickets Available", w.EventName)

	plainBody := fmt.Sprintf(`%s

Tickets have become available for %s. Book now before they go:
%s

To stop receiving these emails for this event:
%s
`, greeting(w.FirstName), w.EventName, w.EventURL, w.UnsubscribeURL)

	htmlBody := fmt.Sprintf(`
		<html>
		<body>
			<p>%s</p>
			<p>Tickets have become available for <strong>%s</strong>.</p>
			<p><a href="%s">Book now</a></p>
			<p><small><a href="%s">Remove me from the waiting list</a></small></p>
		</body>
		</html>
	`, html.EscapeString(greeting(w.FirstName)), html.EscapeString(w.EventName), w.EventURL, w.UnsubscribeURL)

	return s.sendEmail(ctx, to, subject, htmlBody, plainBody)
}

func (s *SMTPEmailService) sendEmail(ctx context.Context, to, subject, htmlBody, plainBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.FromAddress)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody)
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
