package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/pkg/database"
)

const eventColumns = `e.id, c.company, e.category, e.host, e.name, e.slug, e.status,
	e.public, e.allow_tickets, e.allow_donations, e.external_ticket_url,
	e.start_ts, extract(epoch FROM e.duration)::bigint, e.location_name,
	e.ticket_limit, e.tickets_taken, c.cover_costs_percentage`

const ticketTypeColumns = `id, event, name, price, slots_used, mode, custom_amount, active`

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// scanEvent scans a row into an Event
func (r *PostgresEventRepository) scanEvent(row pgx.Row) (*domain.Event, error) {
	e := &domain.Event{}
	var durationSec *int64
	err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&e.CategoryID,
		&e.HostID,
		&e.Name,
		&e.Slug,
		&e.Status,
		&e.Public,
		&e.AllowTickets,
		&e.AllowDonations,
		&e.ExternalTicketURL,
		&e.StartTS,
		&durationSec,
		&e.LocationName,
		&e.TicketLimit,
		&e.TicketsTaken,
		&e.CoverCostsPercentage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if durationSec != nil {
		d := time.Duration(*durationSec) * time.Second
		e.Duration = &d
	}
	return e, nil
}

// scanTicketType scans a row into a TicketType
func (r *PostgresEventRepository) scanTicketType(row pgx.Row) (*domain.TicketType, error) {
	tt := &domain.TicketType{}
	err := row.Scan(
		&tt.ID,
		&tt.EventID,
		&tt.Name,
		&tt.Price,
		&tt.SlotsUsed,
		&tt.Mode,
		&tt.CustomAmount,
		&tt.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tt, nil
}

// GetByID retrieves an event scoped to a company, with its category's cover costs percentage
func (r *PostgresEventRepository) GetByID(ctx context.Context, companyID, eventID int64) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events e
		JOIN categories c ON e.category = c.id
		WHERE e.id = $1 AND c.company = $2
	`
	return r.scanEvent(r.pool.QueryRow(ctx, query, eventID, companyID))
}

// GetTicketType retrieves one ticket type of an event
func (r *PostgresEventRepository) GetTicketType(ctx context.Context, eventID, ticketTypeID int64) (*domain.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE id = $1 AND event = $2`
	return r.scanTicketType(r.pool.QueryRow(ctx, query, ticketTypeID, eventID))
}

// ListTicketTypes lists all ticket types of an event, active ones included or not
func (r *PostgresEventRepository) ListTicketTypes(ctx context.Context, eventID int64) ([]domain.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE event = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []domain.TicketType
	for rows.Next() {
		tt, err := r.scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, *tt)
	}
	return types, rows.Err()
}

// CheckTicketsRemaining expires stale holds and returns the remaining capacity
func (r *PostgresEventRepository) CheckTicketsRemaining(ctx context.Context, eventID int64, ttl time.Duration) (*int, error) {
	var remaining *int
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		remaining, err = checkTicketsRemaining(ctx, tx, eventID, ttl)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check tickets remaining for event %d: %w", eventID, err)
	}
	return remaining, nil
}

// SetTicketLimit updates the limit and recounts in the same transaction
func (r *PostgresEventRepository) SetTicketLimit(ctx context.Context, in SetTicketLimitParams) (*int, error) {
	var remaining *int
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE events SET ticket_limit = $2 WHERE id = $1`, in.EventID, in.TicketLimit); err != nil {
			return err
		}

		var err error
		remaining, err = checkTicketsRemaining(ctx, tx, in.EventID, in.TTL)
		if err != nil {
			return err
		}

		_, err = insertAction(ctx, tx, domain.NewAction{
			CompanyID: in.CompanyID,
			UserID:    int64Ptr(in.ActorUserID),
			EventID:   int64Ptr(in.EventID),
			Type:      domain.ActionEditEvent,
			Extra:     map[string]any{"ticket_limit": in.TicketLimit},
		})
		return err
	})
	if err != nil {
		if database.IsCheckViolation(err) {
			return nil, domain.ErrTicketLimitTooLow
		}
		return nil, fmt.Errorf("failed to set ticket limit for event %d: %w", in.EventID, err)
	}
	return remaining, nil
}

// ReplaceTicketTypes upserts the given types and deactivates the rest
func (r *PostgresEventRepository) ReplaceTicketTypes(ctx context.Context, in ReplaceTicketTypesParams) error {
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		keep := make([]int64, 0, len(in.TicketTypes))
		for _, tt := range in.TicketTypes {
			if tt.ID != 0 {
				keep = append(keep, tt.ID)
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE ticket_types SET active = FALSE
			WHERE event = $1 AND NOT (id = ANY($2))
		`, in.EventID, keep); err != nil {
			return err
		}

		for _, tt := range in.TicketTypes {
			if tt.ID != 0 {
				tag, err := tx.Exec(ctx, `
					UPDATE ticket_types
					SET name = $3, price = $4::numeric, slots_used = $5, mode = $6, custom_amount = $7, active = $8
					WHERE id = $1 AND event = $2
				`, tt.ID, in.EventID, tt.Name, numericArg(tt.Price), tt.SlotsUsed, tt.Mode, tt.CustomAmount, tt.Active)
				if err != nil {
					return err
				}
				if tag.RowsAffected() == 0 {
					return fmt.Errorf("%w: %d", domain.ErrTicketTypeNotFound, tt.ID)
				}
				continue
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO ticket_types (event, name, price, slots_used, mode, custom_amount, active)
				VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
			`, in.EventID, tt.Name, numericArg(tt.Price), tt.SlotsUsed, tt.Mode, tt.CustomAmount, tt.Active); err != nil {
				return err
			}
		}

		_, err := insertAction(ctx, tx, domain.NewAction{
			CompanyID: in.CompanyID,
			UserID:    int64Ptr(in.ActorUserID),
			EventID:   int64Ptr(in.EventID),
			Type:      domain.ActionEditTicketTypes,
			Extra:     map[string]any{"ticket_types": len(in.TicketTypes)},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrTicketTypeNotFound) {
			return err
		}
		return fmt.Errorf("failed to replace ticket types for event %d: %w", in.EventID, err)
	}
	return nil
}

// EventsWithStaleReservations lists events with reserved tickets older than ttl
func (r *PostgresEventRepository) EventsWithStaleReservations(ctx context.Context, ttl time.Duration, limit int) ([]StaleEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT c.company, e.id
		FROM tickets t
		JOIN events e ON t.event = e.id
		JOIN categories c ON e.category = c.id
		WHERE t.status = 'reserved' AND t.created_ts < now() - $1::int * INTERVAL '1 second'
		LIMIT $2
	`, ttlSeconds(ttl), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []StaleEvent
	for rows.Next() {
		var se StaleEvent
		if err := rows.Scan(&se.CompanyID, &se.EventID); err != nil {
			return nil, err
		}
		stale = append(stale, se)
	}
	return stale, rows.Err()
}
