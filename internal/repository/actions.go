package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nosht/nosht/internal/domain"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// insertAction appends to the actions log and returns the new id
func insertAction(ctx context.Context, q querier, a domain.NewAction) (int64, error) {
	var extra []byte
	if a.Extra != nil {
		b, err := json.Marshal(a.Extra)
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s action extra: %w", a.Type, err)
		}
		extra = b
	}

	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO actions (company, user_id, event, type, extra)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, a.CompanyID, a.UserID, a.EventID, string(a.Type), extra).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s action: %w", a.Type, err)
	}
	return id, nil
}

// checkTicketsRemaining runs the capacity recount inside q
func checkTicketsRemaining(ctx context.Context, q querier, eventID int64, ttl time.Duration) (*int, error) {
	var remaining *int
	err := q.QueryRow(ctx, `SELECT check_tickets_remaining($1, $2)`, eventID, ttlSeconds(ttl)).Scan(&remaining)
	if err != nil {
		return nil, err
	}
	return remaining, nil
}

func ttlSeconds(ttl time.Duration) int {
	return int(ttl / time.Second)
}

// numericArg passes a decimal as text, paired with a ::numeric cast in SQL
func numericArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func int64Ptr(v int64) *int64 {
	return &v
}
