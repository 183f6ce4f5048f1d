package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/middleware"
)

// RouterConfig holds the handlers and middleware settings for the API
type RouterConfig struct {
	Health      *HealthHandler
	Booking     *BookingHandler
	Events      *EventHandler
	WaitingList *WaitingListHandler
	Donations   *DonationHandler
	Webhooks    *WebhookHandler

	Session      *middleware.SessionConfig
	ReserveLimit middleware.RateLimitConfig
	CORS         middleware.CORSConfig
	Logger       *logger.Logger
}

// NewRouter builds the gin engine with every booking route
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/health", cfg.Health.Health)

	api := r.Group("/api")

	// Public routes, scoped by company in the path
	api.POST("/stripe/webhook/:company_id", cfg.Webhooks.Stripe)
	api.GET("/companies/:company_id/events/:id/tickets-remaining", cfg.Booking.TicketsRemaining)
	api.GET("/companies/:company_id/events/:id/waiting-list/remove", cfg.WaitingList.Remove)

	events := api.Group("/events")
	events.Use(middleware.SessionMiddleware(cfg.Session))
	{
		events.POST("/:id/reserve", middleware.RateLimiter(cfg.ReserveLimit), cfg.Booking.Reserve)
		events.POST("/book-free", cfg.Booking.BookFree)
		events.POST("/cancel-reservation", cfg.Booking.CancelReservation)
		events.POST("/:id/waiting-list", cfg.WaitingList.Add)
		events.POST("/:id/donation/prepare", cfg.Donations.Prepare)

		host := events.Group("")
		host.Use(middleware.RequireRole(middleware.RoleHost, middleware.RoleAdmin))
		host.PUT("/:id/ticket-limit", cfg.Events.SetTicketLimit)
		host.PUT("/:id/ticket-types", cfg.Events.UpdateTicketTypes)
		host.POST("/:id/tickets/:ticket_id/cancel", cfg.Events.CancelTicket)
	}

	return r
}
