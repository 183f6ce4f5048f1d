package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosht/nosht/internal/domain"
)

// PostgresWaitingListRepository implements WaitingListRepository using PostgreSQL
type PostgresWaitingListRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWaitingListRepository creates a new PostgresWaitingListRepository
func NewPostgresWaitingListRepository(pool *pgxpool.Pool) *PostgresWaitingListRepository {
	return &PostgresWaitingListRepository{pool: pool}
}

// Add inserts an entry, ignoring duplicates
func (r *PostgresWaitingListRepository) Add(ctx context.Context, eventID, userID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO waiting_list (event, user_id) VALUES ($1, $2)
		ON CONFLICT (event, user_id) DO NOTHING
	`, eventID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Remove deletes an entry
func (r *PostgresWaitingListRepository) Remove(ctx context.Context, eventID, userID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM waiting_list WHERE event = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListForEvent lists entries oldest first, with the contact details needed to notify them
func (r *PostgresWaitingListRepository) ListForEvent(ctx context.Context, eventID int64) ([]domain.WaitingListEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT w.id, w.event, w.user_id, w.added_ts, u.email, u.first_name
		FROM waiting_list w
		JOIN users u ON w.user_id = u.id
		WHERE w.event = $1
		ORDER BY w.added_ts, w.id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WaitingListEntry
	for rows.Next() {
		var e domain.WaitingListEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.UserID, &e.AddedTS, &e.Email, &e.FirstName); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
