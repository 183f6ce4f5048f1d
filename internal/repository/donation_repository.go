package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/pkg/database"
)

// PostgresDonationRepository implements DonationRepository using PostgreSQL
type PostgresDonationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDonationRepository creates a new PostgresDonationRepository
func NewPostgresDonationRepository(pool *pgxpool.Pool) *PostgresDonationRepository {
	return &PostgresDonationRepository{pool: pool}
}

// GetOption retrieves a live donation option within a company
func (r *PostgresDonationRepository) GetOption(ctx context.Context, companyID, optionID int64) (*domain.DonationOption, error) {
	o := &domain.DonationOption{}
	err := r.pool.QueryRow(ctx, `
		SELECT o.id, o.category, c.company, o.name, o.amount, o.live
		FROM donation_options o
		JOIN categories c ON o.category = c.id
		WHERE o.id = $1 AND c.company = $2 AND o.live
	`, optionID, companyID).Scan(&o.ID, &o.CategoryID, &o.CompanyID, &o.Name, &o.Amount, &o.Live)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// CreatePrepareAction records the donate-prepare action that a payment intent will reference
func (r *PostgresDonationRepository) CreatePrepareAction(ctx context.Context, in PrepareDonationParams) (int64, error) {
	return insertAction(ctx, r.pool, domain.NewAction{
		CompanyID: in.CompanyID,
		UserID:    int64Ptr(in.UserID),
		EventID:   int64Ptr(in.EventID),
		Type:      domain.ActionDonatePrepare,
		Extra:     in.Extra,
	})
}

// ConfirmDonation locks the prepare action, records the donation and marks the action complete
func (r *PostgresDonationRepository) ConfirmDonation(ctx context.Context, in ConfirmDonationParams) (*ConfirmedDonation, error) {
	var result *ConfirmedDonation
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			companyID int64
			userID    *int64
			eventID   *int64
			raw       []byte
		)
		err := tx.QueryRow(ctx, `
			SELECT company, user_id, event, extra
			FROM actions
			WHERE id = $1 AND type = $2
			FOR UPDATE
		`, in.PrepareActionID, string(domain.ActionDonatePrepare)).Scan(&companyID, &userID, &eventID, &raw)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrInvalidWebhook
			}
			return err
		}
		if companyID != in.CompanyID || userID == nil {
			return domain.ErrInvalidWebhook
		}

		var extra domain.DonationPrepareExtra
		if err := json.Unmarshal(raw, &extra); err != nil {
			return fmt.Errorf("failed to decode donate-prepare extra: %w", err)
		}
		if extra.Complete {
			return domain.ErrAlreadyProcessed
		}

		amount, err := decimal.NewFromString(extra.Amount)
		if err != nil {
			return fmt.Errorf("invalid donation amount %q: %w", extra.Amount, err)
		}

		actionID, err := insertAction(ctx, tx, domain.NewAction{
			CompanyID: companyID,
			UserID:    userID,
			EventID:   eventID,
			Type:      domain.ActionDonate,
			Extra:     in.Charge,
		})
		if err != nil {
			return err
		}

		d := domain.Donation{
			DonationOptionID: int64Ptr(extra.DonationOptionID),
			Amount:           amount,
			GiftAid:          extra.GiftAid,
			ActionID:         actionID,
		}
		if extra.GiftAid && extra.GiftAidDetails != nil {
			g := extra.GiftAidDetails
			d.Title, d.FirstName, d.LastName = &g.Title, &g.FirstName, &g.LastName
			d.Address, d.City, d.Postcode = &g.Address, &g.City, &g.Postcode
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO donations (donation_option, amount, gift_aid, title, first_name, last_name,
				address, city, postcode, action)
			VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`,
			d.DonationOptionID,
			d.Amount.String(),
			d.GiftAid,
			d.Title,
			d.FirstName,
			d.LastName,
			d.Address,
			d.City,
			d.Postcode,
			d.ActionID,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to insert donation: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE actions SET extra = extra || '{"complete": true}'::jsonb WHERE id = $1
		`, in.PrepareActionID); err != nil {
			return err
		}

		result = &ConfirmedDonation{Donation: d, CompanyID: companyID, UserID: *userID}
		if eventID != nil {
			result.EventID = *eventID
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) || errors.Is(err, domain.ErrInvalidWebhook) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to confirm donation %d: %w", in.PrepareActionID, err)
	}
	return result, nil
}
