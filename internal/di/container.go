package di

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/gateway"
	"github.com/nosht/nosht/internal/handler"
	"github.com/nosht/nosht/internal/jobs"
	"github.com/nosht/nosht/internal/notify"
	"github.com/nosht/nosht/internal/repository"
	"github.com/nosht/nosht/internal/service"
	"github.com/nosht/nosht/internal/token"
	"github.com/nosht/nosht/internal/worker"
	"github.com/nosht/nosht/pkg/config"
	"github.com/nosht/nosht/pkg/database"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/middleware"
	"github.com/nosht/nosht/pkg/telemetry"
)

// localQueueWorkers and localQueueBuffer size the in-process queue used without Kafka
const (
	localQueueWorkers = 4
	localQueueBuffer  = 1024
)

// Container holds all dependencies for the nosht service
type Container struct {
	Config *config.Config
	Log    *logger.Logger

	// Infrastructure
	DB          *database.PostgresDB
	Redis       *redis.Client
	Metrics     *telemetry.BookingMetrics
	Gateway     gateway.PaymentGateway
	Tokens      *token.BookingTokenizer
	Unsubscribe *token.UnsubscribeSigner
	Dispatcher  *jobs.Dispatcher
	Queue       jobs.Enqueuer

	producer *jobs.KafkaProducer
	local    *jobs.LocalQueue

	// Repositories
	CompanyRepo     repository.CompanyRepository
	UserRepo        repository.UserRepository
	EventRepo       repository.EventRepository
	BookingRepo     repository.BookingRepository
	DonationRepo    repository.DonationRepository
	WaitingListRepo repository.WaitingListRepository

	// Services
	ReservationService service.ReservationService
	WebhookService     service.WebhookService
	WaitingListService service.WaitingListService
	EventService       service.EventService
	DonationService    service.DonationService
	Notifier           *notify.Notifier

	// Handlers
	HealthHandler      *handler.HealthHandler
	BookingHandler     *handler.BookingHandler
	EventHandler       *handler.EventHandler
	WaitingListHandler *handler.WaitingListHandler
	DonationHandler    *handler.DonationHandler
	WebhookHandler     *handler.WebhookHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config *config.Config
	DB     *database.PostgresDB
	Logger *logger.Logger
	// Gateway overrides the Stripe gateway, used by tests
	Gateway gateway.PaymentGateway
	// Queue overrides the job queue chosen from the Kafka settings
	Queue jobs.Enqueuer
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *ContainerConfig) (*Container, error) {
	c := &Container{
		Config: cfg.Config,
		Log:    cfg.Logger,
		DB:     cfg.DB,
	}
	if c.Log == nil {
		c.Log = logger.Get()
	}
	app := c.Config

	// Initialize infrastructure
	metrics, err := telemetry.NewBookingMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	c.Metrics = metrics

	if c.Tokens, err = newBookingTokenizer(app, c.Log); err != nil {
		return nil, err
	}
	c.Unsubscribe = token.NewUnsubscribeSigner(app.Session.Secret, app.Booking.UnsubscribeTTL)

	c.Gateway = cfg.Gateway
	if c.Gateway == nil {
		c.Gateway = gateway.NewStripeGateway(gateway.GatewayConfig{
			SecretKey:     app.Stripe.SecretKey,
			WebhookSecret: app.Stripe.WebhookSecret,
			Currency:      app.Stripe.Currency,
		}, gateway.WithWebhookTolerance(app.Booking.WebhookTolerate))
	}

	if app.Redis.Enabled {
		c.Redis = newRedisClient(ctx, app.Redis, c.Log)
	}

	// Initialize repositories
	pool := c.DB.Pool()
	c.CompanyRepo = repository.NewPostgresCompanyRepository(pool)
	c.UserRepo = repository.NewPostgresUserRepository(pool)
	c.EventRepo = repository.NewPostgresEventRepository(pool)
	c.BookingRepo = repository.NewPostgresBookingRepository(pool)
	c.DonationRepo = repository.NewPostgresDonationRepository(pool)
	c.WaitingListRepo = repository.NewPostgresWaitingListRepository(pool)

	// Initialize jobs
	var crm notify.CRMClient = notify.NewNoOpCRMClient()
	if app.Donorfy.BaseURL != "" {
		crm = notify.NewHTTPDonorfyClient(app.Donorfy.BaseURL, app.Donorfy.Timeout)
	}
	c.Notifier = notify.NewNotifier(c.EventRepo, c.UserRepo, c.CompanyRepo,
		notify.NewSMTPEmailService(notify.SMTPConfigFrom(app.SMTP)), crm, c.Unsubscribe, app.App.BaseURL)
	c.Dispatcher = jobs.NewDispatcher(c.Log)
	c.Notifier.Register(c.Dispatcher)

	c.Queue = cfg.Queue
	if c.Queue == nil {
		if len(app.Kafka.Brokers) > 0 {
			c.producer, err = jobs.NewKafkaProducer(jobs.KafkaConfigFrom(app.Kafka))
			if err != nil {
				return nil, err
			}
			c.Queue = c.producer
		} else {
			c.local = jobs.NewLocalQueue(c.Dispatcher, localQueueWorkers, localQueueBuffer, c.Log)
			c.Queue = c.local
		}
	}

	// Initialize services
	opts := service.Options{
		ReservationTTL: app.Booking.ReservationTTL,
		MaxTickets:     app.Booking.MaxTickets,
	}
	c.WaitingListService = service.NewWaitingListService(c.EventRepo, c.WaitingListRepo, c.Unsubscribe,
		c.Queue, opts, c.Metrics, c.Log)
	c.ReservationService = service.NewReservationService(service.ReservationDeps{
		Events:      c.EventRepo,
		Bookings:    c.BookingRepo,
		Users:       c.UserRepo,
		Companies:   c.CompanyRepo,
		Gateway:     c.Gateway,
		Tokens:      c.Tokens,
		Queue:       c.Queue,
		WaitingList: c.WaitingListService,
		Metrics:     c.Metrics,
		Logger:      c.Log,
	}, opts)
	c.WebhookService = service.NewWebhookService(c.CompanyRepo, c.BookingRepo, c.DonationRepo, c.Gateway,
		c.Queue, opts, c.Metrics, c.Log)
	c.EventService = service.NewEventService(c.EventRepo, c.BookingRepo, c.CompanyRepo, c.Gateway,
		c.WaitingListService, opts, c.Log)
	c.DonationService = service.NewDonationService(c.EventRepo, c.DonationRepo, c.CompanyRepo, c.Gateway, c.Log)

	// Initialize handlers
	checks := map[string]handler.HealthCheck{"postgres": c.DB.HealthCheck}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	if c.producer != nil {
		checks["kafka"] = c.producer.Ping
	}
	c.HealthHandler = handler.NewHealthHandler(checks)
	c.BookingHandler = handler.NewBookingHandler(c.ReservationService, c.EventService)
	c.EventHandler = handler.NewEventHandler(c.EventService)
	c.WaitingListHandler = handler.NewWaitingListHandler(c.WaitingListService)
	c.DonationHandler = handler.NewDonationHandler(c.DonationService)
	c.WebhookHandler = handler.NewWebhookHandler(c.WebhookService)

	return c, nil
}

// Router builds the HTTP router from the container's handlers
func (c *Container) Router() *gin.Engine {
	limit := middleware.DefaultRateLimitConfig()
	limit.Limit = c.Config.Booking.ReserveRateRPM
	if c.Redis != nil {
		limit.RedisClient = c.Redis
	}

	cors := middleware.DefaultCORSConfig()
	if c.Config.App.BaseURL != "" && c.Config.IsProduction() {
		cors.AllowOrigins = []string{c.Config.App.BaseURL}
	}

	return handler.NewRouter(handler.RouterConfig{
		Health:      c.HealthHandler,
		Booking:     c.BookingHandler,
		Events:      c.EventHandler,
		WaitingList: c.WaitingListHandler,
		Donations:   c.DonationHandler,
		Webhooks:    c.WebhookHandler,
		Session: &middleware.SessionConfig{
			Secret:    c.Config.Session.Secret,
			Issuer:    c.Config.Session.Issuer,
			SkipPaths: []string{"/health"},
		},
		ReserveLimit: limit,
		CORS:         cors,
		Logger:       c.Log,
	})
}

// ExpiryWorker builds the background sweep of expired reservations
func (c *Container) ExpiryWorker() *worker.ExpiryWorker {
	return worker.NewExpiryWorker(c.EventRepo, c.WaitingListService, c.Log, &worker.ExpiryWorkerConfig{
		ScanInterval:   c.Config.Booking.SweepInterval,
		BatchSize:      worker.DefaultExpiryWorkerConfig().BatchSize,
		ReservationTTL: c.Config.Booking.ReservationTTL,
	})
}

// Close drains the job queue and closes clients. The database is owned by the caller.
func (c *Container) Close() {
	if c.local != nil {
		c.local.Close()
	}
	if c.producer != nil {
		c.producer.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Warn("failed to close redis client", zap.Error(err))
		}
	}
}

func newBookingTokenizer(app *config.Config, log *logger.Logger) (*token.BookingTokenizer, error) {
	var (
		key []byte
		err error
	)
	if app.Booking.TokenKey != "" {
		key, err = token.KeyFromHex(app.Booking.TokenKey)
	} else {
		log.Warn("BOOKING_TOKEN_KEY not set, booking tokens will not survive a restart")
		key, err = token.RandomKey()
	}
	if err != nil {
		return nil, err
	}
	return token.NewBookingTokenizer(key, app.Booking.ReservationTTL)
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The rate limiter fails open, so a cold Redis only loses shared limits
		log.Warn("redis not reachable at startup", zap.String("addr", cfg.Addr()), zap.Error(err))
	}
	return client
}
