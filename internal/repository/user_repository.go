package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosht/nosht/internal/domain"
)

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// GetByID retrieves a user within a company
func (r *PostgresUserRepository) GetByID(ctx context.Context, companyID, userID int64) (*domain.User, error) {
	u := &domain.User{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, company, role, first_name, last_name, email
		FROM users
		WHERE id = $1 AND company = $2
	`, userID, companyID).Scan(&u.ID, &u.CompanyID, &u.Role, &u.FirstName, &u.LastName, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// UpsertGuests creates guest accounts for ticket holders. Names only fill gaps on existing users.
func (r *PostgresUserRepository) UpsertGuests(ctx context.Context, companyID int64, holders []domain.TicketHolder) (map[string]int64, error) {
	ids := make(map[string]int64, len(holders))
	batch := &pgx.Batch{}
	var emails []string

	for _, h := range holders {
		email := strings.ToLower(strings.TrimSpace(h.Email))
		if email == "" {
			continue
		}
		if _, seen := ids[email]; seen {
			continue
		}
		ids[email] = 0
		emails = append(emails, email)
		batch.Queue(`
			INSERT INTO users (company, role, status, first_name, last_name, email)
			VALUES ($1, 'guest', 'pending', $2, $3, $4)
			ON CONFLICT (company, email) DO UPDATE SET
				first_name = coalesce(users.first_name, EXCLUDED.first_name),
				last_name = coalesce(users.last_name, EXCLUDED.last_name)
			RETURNING id
		`, companyID, nullString(h.FirstName), nullString(h.LastName), email)
	}

	if len(emails) == 0 {
		return ids, nil
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, email := range emails {
		var id int64
		if err := br.QueryRow().Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to upsert guest %s: %w", email, err)
		}
		ids[email] = id
	}
	return ids, nil
}
