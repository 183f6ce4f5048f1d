package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nosht/nosht/pkg/config"
)

func integrationDB(t *testing.T) *PostgresDB {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultPostgresConfig()
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("TEST_POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if dbname := os.Getenv("TEST_POSTGRES_DATABASE"); dbname != "" {
		cfg.Database = dbname
	}
	cfg.MaxRetries = 0

	db, err := NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "nosht",
		Password: "pw",
		DBName:   "nosht_test",
		SSLMode:  "require",
		MaxConns: 10,
	})

	want := "host=db port=5433 user=nosht password=pw dbname=nosht_test sslmode=require"
	if dsn := cfg.DSN(); dsn != want {
		t.Errorf("DSN() = %q, want %q", dsn, want)
	}
	if cfg.MaxConns != 10 {
		t.Errorf("MaxConns = %d, want 10", cfg.MaxConns)
	}
	// unset values keep the defaults
	if cfg.MinConns != 5 {
		t.Errorf("MinConns = %d, want 5", cfg.MinConns)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
}

func TestPgErrorHelpers(t *testing.T) {
	check := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeCheckViolation, ConstraintName: "ticket_limit_check"})
	unique := &pgconn.PgError{Code: CodeUniqueViolation}

	if !IsCheckViolation(check) {
		t.Error("wrapped 23514 should be a check violation")
	}
	if IsCheckViolation(unique) {
		t.Error("23505 should not be a check violation")
	}
	if !IsUniqueViolation(unique) {
		t.Error("23505 should be a unique violation")
	}
	if code := PgErrorCode(errors.New("plain")); code != "" {
		t.Errorf("PgErrorCode(non-pg error) = %q, want empty", code)
	}
}

func TestNewPostgres_StopsRetryingWhenCancelled(t *testing.T) {
	cfg := DefaultPostgresConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.MinConns = 0
	cfg.MaxRetries = 5
	cfg.RetryInterval = time.Hour
	cfg.ConnectTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := NewPostgres(ctx, cfg)
	if err == nil {
		t.Fatal("NewPostgres() succeeded against a closed port")
	}
	if !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("error = %v, want a cancellation", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("NewPostgres() waited for the retry interval after cancellation")
	}
}

func TestWithTx_CheckViolationRollsBack_Integration(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	pool := db.Pool()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS with_tx_capacity (
			id INT PRIMARY KEY,
			taken INT NOT NULL,
			cap INT,
			CONSTRAINT with_tx_capacity_check CHECK (taken <= cap)
		)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	defer pool.Exec(ctx, "DROP TABLE with_tx_capacity")

	if _, err := pool.Exec(ctx, "INSERT INTO with_tx_capacity VALUES (1, 0, 2)"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "UPDATE with_tx_capacity SET cap = 1 WHERE id = 1"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "UPDATE with_tx_capacity SET taken = 3 WHERE id = 1")
		return err
	})
	if !IsCheckViolation(err) {
		t.Fatalf("WithTx() error = %v, want a check violation", err)
	}

	var taken, capacity int
	if err := pool.QueryRow(ctx, "SELECT taken, cap FROM with_tx_capacity WHERE id = 1").Scan(&taken, &capacity); err != nil {
		t.Fatalf("select: %v", err)
	}
	if taken != 0 || capacity != 2 {
		t.Errorf("row = (%d, %d), want the earlier update rolled back to (0, 2)", taken, capacity)
	}
}

func TestWithTx_PanicRollsBack_Integration(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	pool := db.Pool()

	if _, err := pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS with_tx_panic (value INT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	defer pool.Exec(ctx, "DROP TABLE with_tx_panic")

	func() {
		defer func() {
			if recover() == nil {
				t.Error("WithTx() swallowed the panic")
			}
		}()
		_ = WithTx(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "INSERT INTO with_tx_panic VALUES (1)"); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var n int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM with_tx_panic").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("rows after panic = %d, want 0", n)
	}
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() after rollback: %v", err)
	}
}
