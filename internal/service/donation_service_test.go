package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/gateway"
	"github.com/nosht/nosht/internal/repository"
	"github.com/nosht/nosht/pkg/logger"
)

func donationEvent() *domain.Event {
	e := bookableEvent()
	e.CategoryID = 4
	e.AllowDonations = true
	return e
}

func TestDonationPrepare(t *testing.T) {
	events := &mockEventRepo{}
	donations := &mockDonationRepo{}
	companies := &mockCompanyRepo{}
	gw := &mockGateway{}
	svc := NewDonationService(events, donations, companies, gw, logger.NewNop())

	giftAid := &domain.GiftAid{FirstName: "Ada", LastName: "Lovelace", Address: "1 St James Sq", City: "London", Postcode: "SW1Y 4JU"}
	events.On("GetByID", mock.Anything, int64(1), int64(10)).Return(donationEvent(), nil)
	donations.On("GetOption", mock.Anything, int64(1), int64(2)).
		Return(&domain.DonationOption{ID: 2, CategoryID: 4, Name: "Meal", Amount: decimal.RequireFromString("12.50"), Live: true}, nil)
	companies.On("GetByID", mock.Anything, int64(1)).Return(&domain.Company{ID: 1, Currency: "gbp"}, nil)
	donations.On("CreatePrepareAction", mock.Anything, repository.PrepareDonationParams{
		CompanyID: 1, UserID: 7, EventID: 10,
		Extra: domain.DonationPrepareExtra{DonationOptionID: 2, EventID: 10, Amount: "12.50", GiftAid: true, GiftAidDetails: giftAid},
	}).Return(int64(80), nil)
	gw.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(r *gateway.PaymentIntentRequest) bool {
		return r.AmountCents == 1250 &&
			r.Metadata[domain.MetaPurpose] == domain.PurposeDonate &&
			r.Metadata[domain.MetaPrepareActionID] == "80"
	})).Return(&gateway.PaymentIntentResponse{ClientSecret: "pi_d_secret"}, nil)

	intent, err := svc.Prepare(context.Background(), guest, &PrepareDonationRequest{
		EventID: 10, DonationOptionID: 2, GiftAid: true, GiftAidDetails: giftAid,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(80), intent.ActionID)
	assert.Equal(t, "pi_d_secret", intent.ClientSecret)
}

func TestDonationPrepare_Rejections(t *testing.T) {
	noDonations := donationEvent()
	noDonations.AllowDonations = false

	tests := []struct {
		name    string
		req     PrepareDonationRequest
		event   *domain.Event
		option  *domain.DonationOption
		wantErr error
	}{
		{
			name:    "gift aid without details",
			req:     PrepareDonationRequest{EventID: 10, DonationOptionID: 2, GiftAid: true},
			wantErr: domain.ErrGiftAidDetailsRequired,
		},
		{
			name:    "donations disabled",
			req:     PrepareDonationRequest{EventID: 10, DonationOptionID: 2},
			event:   noDonations,
			wantErr: domain.ErrDonationsNotAllowed,
		},
		{
			name:    "option from another category",
			req:     PrepareDonationRequest{EventID: 10, DonationOptionID: 2},
			event:   donationEvent(),
			option:  &domain.DonationOption{ID: 2, CategoryID: 5, Amount: decimal.NewFromInt(5)},
			wantErr: domain.ErrDonationOptionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &mockEventRepo{}
			donations := &mockDonationRepo{}
			svc := NewDonationService(events, donations, &mockCompanyRepo{}, &mockGateway{}, logger.NewNop())
			events.On("GetByID", mock.Anything, int64(1), int64(10)).Return(tt.event, nil)
			donations.On("GetOption", mock.Anything, int64(1), int64(2)).Return(tt.option, nil)

			_, err := svc.Prepare(context.Background(), guest, &tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			donations.AssertNotCalled(t, "CreatePrepareAction", mock.Anything, mock.Anything)
		})
	}
}
