package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/gateway"
	"github.com/nosht/nosht/internal/repository"
	"github.com/nosht/nosht/pkg/logger"
)

// PrepareDonationRequest asks to start a donation on an event
type PrepareDonationRequest struct {
	EventID          int64
	DonationOptionID int64
	GiftAid          bool
	GiftAidDetails   *domain.GiftAid
}

// DonationIntent is returned to the client to complete the payment
type DonationIntent struct {
	ActionID     int64           `json:"action_id"`
	Amount       decimal.Decimal `json:"amount"`
	ClientSecret string          `json:"client_secret"`
}

// donationService implements the DonationService interface
type donationService struct {
	events    repository.EventRepository
	donations repository.DonationRepository
	companies repository.CompanyRepository
	gateway   gateway.PaymentGateway
	log       *logger.Logger
}

// NewDonationService creates a new DonationService
func NewDonationService(
	events repository.EventRepository,
	donations repository.DonationRepository,
	companies repository.CompanyRepository,
	gw gateway.PaymentGateway,
	log *logger.Logger,
) DonationService {
	return &donationService{
		events:    events,
		donations: donations,
		companies: companies,
		gateway:   gw,
		log:       loggerOrGlobal(log),
	}
}

// Prepare records the donor's intent and creates a payment intent tagged with purpose=donate
func (s *donationService) Prepare(ctx context.Context, caller Caller, req *PrepareDonationRequest) (*DonationIntent, error) {
	if req.GiftAid && req.GiftAidDetails == nil {
		return nil, domain.ErrGiftAidDetailsRequired
	}

	event, err := s.events.GetByID(ctx, caller.CompanyID, req.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	if !event.AllowDonations {
		return nil, domain.ErrDonationsNotAllowed
	}

	option, err := s.donations.GetOption(ctx, caller.CompanyID, req.DonationOptionID)
	if err != nil {
		return nil, err
	}
	if option == nil || option.CategoryID != event.CategoryID {
		return nil, domain.ErrDonationOptionNotFound
	}

	company, err := s.companies.GetByID(ctx, caller.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrCompanyNotFound
	}

	extra := domain.DonationPrepareExtra{
		DonationOptionID: option.ID,
		EventID:          event.ID,
		Amount:           option.Amount.StringFixed(2),
		GiftAid:          req.GiftAid,
	}
	if req.GiftAid {
		extra.GiftAidDetails = req.GiftAidDetails
	}

	actionID, err := s.donations.CreatePrepareAction(ctx, repository.PrepareDonationParams{
		CompanyID: caller.CompanyID,
		UserID:    caller.UserID,
		EventID:   event.ID,
		Extra:     extra,
	})
	if err != nil {
		return nil, err
	}

	pi, err := s.gateway.CreatePaymentIntent(ctx, &gateway.PaymentIntentRequest{
		SecretKey:   company.StripeSecretKey,
		AmountCents: domain.ToCents(option.Amount),
		Currency:    company.Currency,
		Description: fmt.Sprintf("%s donation for %s", option.Name, event.Name),
		Metadata: map[string]string{
			domain.MetaPurpose:         domain.PurposeDonate,
			domain.MetaPrepareActionID: strconv.FormatInt(actionID, 10),
			domain.MetaEventID:         strconv.FormatInt(event.ID, 10),
			domain.MetaUserID:          strconv.FormatInt(caller.UserID, 10),
			domain.MetaCompanyID:       strconv.FormatInt(caller.CompanyID, 10),
		},
		CustomerEmail:  caller.Email,
		IdempotencyKey: fmt.Sprintf("donate-%d", actionID),
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("donation prepared",
		zap.Int64("event_id", event.ID),
		zap.Int64("action_id", actionID),
		zap.String("amount", option.Amount.StringFixed(2)),
	)
	return &DonationIntent{ActionID: actionID, Amount: option.Amount, ClientSecret: pi.ClientSecret}, nil
}
