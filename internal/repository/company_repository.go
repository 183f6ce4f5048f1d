package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosht/nosht/internal/domain"
)

// PostgresCompanyRepository implements CompanyRepository using PostgreSQL
type PostgresCompanyRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCompanyRepository creates a new PostgresCompanyRepository
func NewPostgresCompanyRepository(pool *pgxpool.Pool) *PostgresCompanyRepository {
	return &PostgresCompanyRepository{pool: pool}
}

// GetByID retrieves a company with its payment and CRM credentials
func (r *PostgresCompanyRepository) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	c := &domain.Company{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, domain, currency,
			coalesce(stripe_public_key, ''), coalesce(stripe_secret_key, ''), coalesce(stripe_webhook_secret, ''),
			coalesce(donorfy_api_key, ''), coalesce(donorfy_access_key, '')
		FROM companies
		WHERE id = $1
	`, id).Scan(
		&c.ID,
		&c.Name,
		&c.Domain,
		&c.Currency,
		&c.StripePublicKey,
		&c.StripeSecretKey,
		&c.StripeWebhookSecret,
		&c.DonorfyAPIKey,
		&c.DonorfyAccessKey,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}
