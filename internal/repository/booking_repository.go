package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/pkg/database"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL.
// Lock order is always tickets before events.
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

// CreateReservation inserts the reserve action and tickets, then recounts. The recount trips
// ticket_limit_check when the new tickets do not fit, which rolls everything back.
func (r *PostgresBookingRepository) CreateReservation(ctx context.Context, in CreateReservationParams) (int64, error) {
	var actionID int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		actionID, err = insertAction(ctx, tx, domain.NewAction{
			CompanyID: in.CompanyID,
			UserID:    int64Ptr(in.UserID),
			EventID:   int64Ptr(in.EventID),
			Type:      domain.ActionReserveTickets,
			Extra:     in.Extra,
		})
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, t := range in.Tickets {
			batch.Queue(`
				INSERT INTO tickets (event, ticket_type, user_id, first_name, last_name, email, extra_info,
					price, extra_donated, reserve_action)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10)
			`,
				in.EventID,
				in.TicketTypeID,
				t.UserID,
				nullString(t.FirstName),
				nullString(t.LastName),
				nullString(t.Email),
				nullString(t.ExtraInfo),
				numericArg(t.Price),
				numericArg(t.ExtraDonated),
				actionID,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert tickets: %w", err)
		}

		_, err = checkTicketsRemaining(ctx, tx, in.EventID, in.TTL)
		return err
	})
	if err != nil {
		if database.IsCheckViolation(err) {
			return 0, domain.ErrInsufficientTickets
		}
		return 0, fmt.Errorf("failed to create reservation for event %d: %w", in.EventID, err)
	}
	return actionID, nil
}

// CancelReservation deletes the reserved tickets and returns how many were freed
func (r *PostgresBookingRepository) CancelReservation(ctx context.Context, in CancelReservationParams) (int, error) {
	var freed int
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM tickets
			WHERE reserve_action = $1 AND event = $2 AND status = 'reserved'
		`, in.ReserveActionID, in.EventID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrReservationNotPending
		}
		freed = int(tag.RowsAffected())

		if _, err := checkTicketsRemaining(ctx, tx, in.EventID, in.TTL); err != nil {
			return err
		}

		_, err = insertAction(ctx, tx, domain.NewAction{
			CompanyID: in.CompanyID,
			UserID:    int64Ptr(in.UserID),
			EventID:   int64Ptr(in.EventID),
			Type:      domain.ActionCancelReservedTicket,
			Extra:     map[string]any{"reserve_action_id": in.ReserveActionID, "ticket_count": freed},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotPending) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to cancel reservation %d: %w", in.ReserveActionID, err)
	}
	return freed, nil
}

// ConfirmTicketPurchase locks the reservation's tickets, marks them paid and recounts
func (r *PostgresBookingRepository) ConfirmTicketPurchase(ctx context.Context, in ConfirmPurchaseParams) (*ConfirmedBooking, error) {
	var booking *ConfirmedBooking
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT t.status, t.event, a.company, a.user_id
			FROM tickets t
			JOIN actions a ON t.reserve_action = a.id
			WHERE t.reserve_action = $1
			FOR UPDATE OF t
		`, in.ReserveActionID)
		if err != nil {
			return err
		}

		b := &ConfirmedBooking{ReserveActionID: in.ReserveActionID}
		var userID *int64
		pending := true
		for rows.Next() {
			var status string
			if err := rows.Scan(&status, &b.EventID, &b.CompanyID, &userID); err != nil {
				rows.Close()
				return err
			}
			if domain.TicketStatus(status) != domain.TicketStatusReserved {
				pending = false
			}
			b.TicketCount++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if b.TicketCount == 0 || !pending {
			return domain.ErrAlreadyProcessed
		}
		if b.CompanyID != in.CompanyID || userID == nil {
			return domain.ErrInvalidWebhook
		}
		b.UserID = *userID

		b.ActionID, err = insertAction(ctx, tx, domain.NewAction{
			CompanyID: b.CompanyID,
			UserID:    userID,
			EventID:   int64Ptr(b.EventID),
			Type:      domain.ActionBuyTickets,
			Extra:     in.Charge,
		})
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE tickets SET status = 'paid', booked_action = $2
			WHERE reserve_action = $1
		`, in.ReserveActionID, b.ActionID); err != nil {
			return err
		}

		if _, err := checkTicketsRemaining(ctx, tx, b.EventID, in.TTL); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM waiting_list WHERE event = $1 AND user_id = $2`, b.EventID, b.UserID); err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) || errors.Is(err, domain.ErrInvalidWebhook) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to confirm purchase %d: %w", in.ReserveActionID, err)
	}
	return booking, nil
}

// BookReserved marks reserved tickets booked for free or offline payment
func (r *PostgresBookingRepository) BookReserved(ctx context.Context, in BookReservedParams) (*ConfirmedBooking, error) {
	b := &ConfirmedBooking{
		ReserveActionID: in.ReserveActionID,
		CompanyID:       in.CompanyID,
		EventID:         in.EventID,
		UserID:          in.BuyerUserID,
	}
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		b.ActionID, err = insertAction(ctx, tx, domain.NewAction{
			CompanyID: in.CompanyID,
			UserID:    int64Ptr(in.ActorUserID),
			EventID:   int64Ptr(in.EventID),
			Type:      in.ActionType,
			Extra:     map[string]any{"reserve_action_id": in.ReserveActionID},
		})
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE tickets SET status = 'booked', booked_action = $2
			WHERE reserve_action = $1 AND event = $3 AND status = 'reserved'
		`, in.ReserveActionID, b.ActionID, in.EventID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrReservationNotPending
		}
		b.TicketCount = int(tag.RowsAffected())

		if _, err := checkTicketsRemaining(ctx, tx, in.EventID, in.TTL); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `DELETE FROM waiting_list WHERE event = $1 AND user_id = $2`, in.EventID, in.BuyerUserID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotPending) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to book reservation %d: %w", in.ReserveActionID, err)
	}
	return b, nil
}

// GetTicket retrieves a ticket with the payment intent of the action that booked it
func (r *PostgresBookingRepository) GetTicket(ctx context.Context, eventID, ticketID int64) (*TicketDetail, error) {
	t := &TicketDetail{}
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT t.id, t.event, t.ticket_type, t.user_id, t.first_name, t.last_name, t.email, t.extra_info,
			t.price, t.extra_donated, t.status, t.reserve_action, t.booked_action, t.created_ts,
			coalesce(b.extra->>'payment_intent_id', '')
		FROM tickets t
		LEFT JOIN actions b ON t.booked_action = b.id
		WHERE t.id = $1 AND t.event = $2
	`, ticketID, eventID).Scan(
		&t.ID,
		&t.EventID,
		&t.TicketTypeID,
		&t.UserID,
		&t.FirstName,
		&t.LastName,
		&t.Email,
		&t.ExtraInfo,
		&t.Price,
		&t.ExtraDonated,
		&status,
		&t.ReserveAction,
		&t.BookedAction,
		&t.CreatedTS,
		&t.PaymentIntentID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	return t, nil
}

// CancelTicket cancels a ticket under a row lock and recounts capacity
func (r *PostgresBookingRepository) CancelTicket(ctx context.Context, in CancelTicketParams) error {
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `
			SELECT status FROM tickets WHERE id = $1 AND event = $2 FOR UPDATE
		`, in.TicketID, in.EventID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrTicketNotFound
			}
			return err
		}
		if err := domain.TicketStatus(status).TransitionTo(domain.TicketStatusCancelled); err != nil {
			return err
		}

		if _, err := insertAction(ctx, tx, domain.NewAction{
			CompanyID: in.CompanyID,
			UserID:    int64Ptr(in.ActorUserID),
			EventID:   int64Ptr(in.EventID),
			Type:      domain.ActionCancelBookedTickets,
			Extra:     in.Cancellation,
		}); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE tickets SET status = 'cancelled' WHERE id = $1`, in.TicketID); err != nil {
			return err
		}

		_, err = checkTicketsRemaining(ctx, tx, in.EventID, in.TTL)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("failed to cancel ticket %d: %w", in.TicketID, err)
	}
	return nil
}
