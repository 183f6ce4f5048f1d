package repository

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/migrations"
	"github.com/nosht/nosht/pkg/database"
)

const testTTL = 5 * time.Minute

type fixture struct {
	pool         *pgxpool.Pool
	companyID    int64
	hostID       int64
	buyerID      int64
	eventID      int64
	ticketTypeID int64
}

// setupFixture connects to the test database, migrates it and seeds a company with one event
func setupFixture(t *testing.T, ticketLimit *int, price *string) *fixture {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := database.DefaultPostgresConfig()
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

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	t.Cleanup(db.Close)

	m, err := database.NewMigrator(db.StdDB(), migrations.FS)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))

	f := &fixture{pool: db.Pool()}
	suffix := uuid.NewString()[:8]
	pool := f.pool

	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO companies (name, domain) VALUES ($1, $2) RETURNING id`,
		"Test "+suffix, suffix+".example.com",
	).Scan(&f.companyID))

	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (company, role, status, email) VALUES ($1, 'host', 'active', $2) RETURNING id`,
		f.companyID, "host-"+suffix+"@example.com",
	).Scan(&f.hostID))

	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (company, role, status, email) VALUES ($1, 'guest', 'active', $2) RETURNING id`,
		f.companyID, "buyer-"+suffix+"@example.com",
	).Scan(&f.buyerID))

	var categoryID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO categories (company, name, slug, cover_costs_percentage) VALUES ($1, 'Supper Clubs', $2, 10) RETURNING id`,
		f.companyID, "supper-"+suffix,
	).Scan(&categoryID))

	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO events (category, host, name, slug, status, start_ts, ticket_limit)
		VALUES ($1, $2, 'Dinner', $3, 'published', now() + INTERVAL '7 days', $4)
		RETURNING id
	`, categoryID, f.hostID, "dinner-"+suffix, ticketLimit).Scan(&f.eventID))

	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO ticket_types (event, name, price) VALUES ($1, 'Standard', $2::numeric) RETURNING id`,
		f.eventID, price,
	).Scan(&f.ticketTypeID))

	return f
}

func (f *fixture) reserve(t *testing.T, repo *PostgresBookingRepository, count int) (int64, error) {
	t.Helper()
	tickets := make([]domain.NewTicket, count)
	for i := range tickets {
		tickets[i] = domain.NewTicket{FirstName: fmt.Sprintf("Guest %d", i)}
	}
	tickets[0].UserID = &f.buyerID
	return repo.CreateReservation(context.Background(), CreateReservationParams{
		CompanyID:    f.companyID,
		UserID:       f.buyerID,
		EventID:      f.eventID,
		TicketTypeID: f.ticketTypeID,
		TTL:          testTTL,
		Tickets:      tickets,
	})
}

func (f *fixture) ticketsTaken(t *testing.T) int {
	t.Helper()
	var taken int
	require.NoError(t, f.pool.QueryRow(context.Background(),
		`SELECT tickets_taken FROM events WHERE id = $1`, f.eventID).Scan(&taken))
	return taken
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func TestCreateReservation_ConcurrentNeverOversells(t *testing.T) {
	f := setupFixture(t, intPtr(5), nil)
	repo := NewPostgresBookingRepository(f.pool)

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reserve(t, repo, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, domain.ErrInsufficientTickets):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, attempts-5, rejected)
	assert.Equal(t, 5, f.ticketsTaken(t))
}

func TestCancelReservation_RoundTrip(t *testing.T) {
	f := setupFixture(t, intPtr(10), nil)
	repo := NewPostgresBookingRepository(f.pool)
	events := NewPostgresEventRepository(f.pool)
	ctx := context.Background()

	actionID, err := f.reserve(t, repo, 3)
	require.NoError(t, err)

	remaining, err := events.CheckTicketsRemaining(ctx, f.eventID, testTTL)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Equal(t, 7, *remaining)

	params := CancelReservationParams{
		CompanyID:       f.companyID,
		UserID:          f.buyerID,
		EventID:         f.eventID,
		ReserveActionID: actionID,
		TTL:             testTTL,
	}
	freed, err := repo.CancelReservation(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 3, freed)
	assert.Equal(t, 0, f.ticketsTaken(t))

	_, err = repo.CancelReservation(ctx, params)
	assert.ErrorIs(t, err, domain.ErrReservationNotPending)
}

func TestConfirmTicketPurchase_Idempotent(t *testing.T) {
	f := setupFixture(t, intPtr(10), strPtr("12.50"))
	repo := NewPostgresBookingRepository(f.pool)
	wl := NewPostgresWaitingListRepository(f.pool)
	ctx := context.Background()

	_, err := wl.Add(ctx, f.eventID, f.buyerID)
	require.NoError(t, err)

	actionID, err := f.reserve(t, repo, 2)
	require.NoError(t, err)

	in := ConfirmPurchaseParams{
		CompanyID:       f.companyID,
		ReserveActionID: actionID,
		Charge:          domain.ChargeDetails{PaymentIntentID: "pi_test", AmountCents: 2500, Currency: "gbp"},
		TTL:             testTTL,
	}
	booking, err := repo.ConfirmTicketPurchase(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, booking.TicketCount)
	assert.Equal(t, f.buyerID, booking.UserID)

	_, err = repo.ConfirmTicketPurchase(ctx, in)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	var buys int
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT count(*) FROM actions WHERE company = $1 AND type = 'buy-tickets'`, f.companyID).Scan(&buys))
	assert.Equal(t, 1, buys)

	entries, err := wl.ListForEvent(ctx, f.eventID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = repo.CancelReservation(ctx, CancelReservationParams{
		CompanyID: f.companyID, UserID: f.buyerID, EventID: f.eventID, ReserveActionID: actionID, TTL: testTTL,
	})
	assert.ErrorIs(t, err, domain.ErrReservationNotPending)
	assert.Equal(t, 2, f.ticketsTaken(t))

	wrongCompany := in
	wrongCompany.CompanyID = f.companyID + 1000
	_, err = repo.ConfirmTicketPurchase(ctx, wrongCompany)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestBookReserved_SecondCallRejected(t *testing.T) {
	f := setupFixture(t, nil, nil)
	repo := NewPostgresBookingRepository(f.pool)
	ctx := context.Background()

	actionID, err := f.reserve(t, repo, 1)
	require.NoError(t, err)

	in := BookReservedParams{
		CompanyID:       f.companyID,
		ActorUserID:     f.buyerID,
		BuyerUserID:     f.buyerID,
		EventID:         f.eventID,
		ReserveActionID: actionID,
		ActionType:      domain.ActionBookFreeTickets,
		TTL:             testTTL,
	}
	booking, err := repo.BookReserved(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, booking.TicketCount)

	_, err = repo.BookReserved(ctx, in)
	assert.ErrorIs(t, err, domain.ErrReservationNotPending)
}

func TestStaleReservationsAreSwept(t *testing.T) {
	f := setupFixture(t, intPtr(4), nil)
	repo := NewPostgresBookingRepository(f.pool)
	events := NewPostgresEventRepository(f.pool)
	ctx := context.Background()

	_, err := f.reserve(t, repo, 4)
	require.NoError(t, err)

	_, err = f.reserve(t, repo, 1)
	require.ErrorIs(t, err, domain.ErrInsufficientTickets)

	_, err = f.pool.Exec(ctx,
		`UPDATE tickets SET created_ts = now() - INTERVAL '1 hour' WHERE event = $1`, f.eventID)
	require.NoError(t, err)

	stale, err := events.EventsWithStaleReservations(ctx, testTTL, 10000)
	require.NoError(t, err)
	assert.Contains(t, stale, StaleEvent{CompanyID: f.companyID, EventID: f.eventID})

	// the next reservation expires the stale holds itself
	_, err = f.reserve(t, repo, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, f.ticketsTaken(t))

	remaining, err := events.CheckTicketsRemaining(ctx, f.eventID, testTTL)
	require.NoError(t, err)
	assert.Equal(t, 2, *remaining)
}

func TestCancelTicket(t *testing.T) {
	f := setupFixture(t, intPtr(3), nil)
	repo := NewPostgresBookingRepository(f.pool)
	ctx := context.Background()

	actionID, err := f.reserve(t, repo, 1)
	require.NoError(t, err)
	_, err = repo.BookReserved(ctx, BookReservedParams{
		CompanyID: f.companyID, ActorUserID: f.hostID, BuyerUserID: f.buyerID, EventID: f.eventID,
		ReserveActionID: actionID, ActionType: domain.ActionBookOfflineTickets, TTL: testTTL,
	})
	require.NoError(t, err)

	var ticketID int64
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT id FROM tickets WHERE reserve_action = $1`, actionID).Scan(&ticketID))

	ticket, err := repo.GetTicket(ctx, f.eventID, ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, domain.TicketStatusBooked, ticket.Status)
	assert.Empty(t, ticket.PaymentIntentID)

	in := CancelTicketParams{
		CompanyID: f.companyID, ActorUserID: f.hostID, EventID: f.eventID, TicketID: ticketID, TTL: testTTL,
		Cancellation: domain.TicketCancellation{TicketID: ticketID},
	}
	require.NoError(t, repo.CancelTicket(ctx, in))
	assert.Equal(t, 0, f.ticketsTaken(t))

	assert.ErrorIs(t, repo.CancelTicket(ctx, in), domain.ErrInvalidTransition)

	in.TicketID = ticketID + 100000
	assert.ErrorIs(t, repo.CancelTicket(ctx, in), domain.ErrTicketNotFound)

	missing, err := repo.GetTicket(ctx, f.eventID, ticketID+100000)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSetTicketLimit(t *testing.T) {
	f := setupFixture(t, intPtr(10), nil)
	repo := NewPostgresBookingRepository(f.pool)
	events := NewPostgresEventRepository(f.pool)
	ctx := context.Background()

	_, err := f.reserve(t, repo, 3)
	require.NoError(t, err)

	in := SetTicketLimitParams{CompanyID: f.companyID, ActorUserID: f.hostID, EventID: f.eventID, TTL: testTTL}

	in.TicketLimit = intPtr(2)
	_, err = events.SetTicketLimit(ctx, in)
	assert.ErrorIs(t, err, domain.ErrTicketLimitTooLow)

	in.TicketLimit = intPtr(4)
	remaining, err := events.SetTicketLimit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, *remaining)

	in.TicketLimit = nil
	remaining, err = events.SetTicketLimit(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, remaining)
}

func TestEventRepository_GetAndTicketTypes(t *testing.T) {
	f := setupFixture(t, nil, strPtr("20"))
	events := NewPostgresEventRepository(f.pool)
	ctx := context.Background()

	e, err := events.GetByID(ctx, f.companyID, f.eventID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, f.companyID, e.CompanyID)
	assert.Nil(t, e.TicketLimit)
	assert.True(t, e.CoverCostsPercentage.Decimal.Equal(decimal.NewFromInt(10)))

	other, err := events.GetByID(ctx, f.companyID+1000, f.eventID)
	require.NoError(t, err)
	assert.Nil(t, other)

	tt, err := events.GetTicketType(ctx, f.eventID, f.ticketTypeID)
	require.NoError(t, err)
	require.NotNil(t, tt)
	assert.True(t, tt.Price.Decimal.Equal(decimal.NewFromInt(20)))

	err = events.ReplaceTicketTypes(ctx, ReplaceTicketTypesParams{
		CompanyID:   f.companyID,
		ActorUserID: f.hostID,
		EventID:     f.eventID,
		TicketTypes: []domain.TicketType{
			{Name: "Concession", SlotsUsed: 1, Mode: domain.TicketModeTicket, Active: true},
		},
	})
	require.NoError(t, err)

	types, err := events.ListTicketTypes(ctx, f.eventID)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.False(t, types[0].Active)
	assert.Equal(t, "Concession", types[1].Name)
	assert.False(t, types[1].Price.Valid)
}

func TestUpsertGuests_KeepsExistingNames(t *testing.T) {
	f := setupFixture(t, nil, nil)
	users := NewPostgresUserRepository(f.pool)
	ctx := context.Background()

	email := "guest-" + uuid.NewString()[:8] + "@example.com"
	ids, err := users.UpsertGuests(ctx, f.companyID, []domain.TicketHolder{
		{FirstName: "Ada", Email: email},
		{FirstName: "Duplicate", Email: email},
		{FirstName: "No Email"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	again, err := users.UpsertGuests(ctx, f.companyID, []domain.TicketHolder{
		{FirstName: "Changed", LastName: "Lovelace", Email: email},
	})
	require.NoError(t, err)
	assert.Equal(t, ids[email], again[email])

	u, err := users.GetByID(ctx, f.companyID, ids[email])
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.FullName())
}

func TestConfirmDonation_Idempotent(t *testing.T) {
	f := setupFixture(t, nil, nil)
	donations := NewPostgresDonationRepository(f.pool)
	ctx := context.Background()

	var optionID int64
	require.NoError(t, f.pool.QueryRow(ctx, `
		INSERT INTO donation_options (category, name, amount)
		SELECT category, 'Meal', 25 FROM events WHERE id = $1
		RETURNING id
	`, f.eventID).Scan(&optionID))

	option, err := donations.GetOption(ctx, f.companyID, optionID)
	require.NoError(t, err)
	require.NotNil(t, option)

	prepareID, err := donations.CreatePrepareAction(ctx, PrepareDonationParams{
		CompanyID: f.companyID,
		UserID:    f.buyerID,
		EventID:   f.eventID,
		Extra: domain.DonationPrepareExtra{
			DonationOptionID: optionID,
			EventID:          f.eventID,
			Amount:           option.Amount.String(),
			GiftAid:          true,
			GiftAidDetails: &domain.GiftAid{
				FirstName: "Ada", LastName: "Lovelace", Address: "1 High St", City: "London", Postcode: "N1 1AA",
			},
		},
	})
	require.NoError(t, err)

	in := ConfirmDonationParams{
		CompanyID:       f.companyID,
		PrepareActionID: prepareID,
		Charge:          domain.ChargeDetails{PaymentIntentID: "pi_donation", AmountCents: 2500},
	}
	confirmed, err := donations.ConfirmDonation(ctx, in)
	require.NoError(t, err)
	assert.True(t, confirmed.Donation.Amount.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, "London", *confirmed.Donation.City)

	_, err = donations.ConfirmDonation(ctx, in)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	in.PrepareActionID = prepareID + 100000
	_, err = donations.ConfirmDonation(ctx, in)
	assert.ErrorIs(t, err, domain.ErrInvalidWebhook)
}

func TestWaitingList(t *testing.T) {
	f := setupFixture(t, intPtr(1), nil)
	wl := NewPostgresWaitingListRepository(f.pool)
	ctx := context.Background()

	added, err := wl.Add(ctx, f.eventID, f.buyerID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = wl.Add(ctx, f.eventID, f.buyerID)
	require.NoError(t, err)
	assert.False(t, added)

	entries, err := wl.ListForEvent(ctx, f.eventID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, f.buyerID, entries[0].UserID)

	removed, err := wl.Remove(ctx, f.eventID, f.buyerID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = wl.Remove(ctx, f.eventID, f.buyerID)
	require.NoError(t, err)
	assert.False(t, removed)
}
