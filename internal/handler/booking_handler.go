package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/service"
	"github.com/nosht/nosht/pkg/response"
	"github.com/nosht/nosht/pkg/telemetry"
)

// ReserveRequest is the body of POST /events/:id/reserve
type ReserveRequest struct {
	TicketTypeID int64                 `json:"ticket_type" binding:"required"`
	Tickets      []domain.TicketHolder `json:"tickets" binding:"dive"`
	CoverCosts   bool                  `json:"cover_costs"`
}

// BookingTokenRequest carries a booking token
type BookingTokenRequest struct {
	BookingToken string `json:"booking_token" binding:"required"`
}

// BookingHandler handles reservation requests
type BookingHandler struct {
	reservations service.ReservationService
	events       service.EventService
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(reservations service.ReservationService, events service.EventService) *BookingHandler {
	return &BookingHandler{
		reservations: reservations,
		events:       events,
	}
}

// TicketsRemaining handles GET /companies/:company_id/events/:id/tickets-remaining
func (h *BookingHandler) TicketsRemaining(c *gin.Context) {
	companyID, ok := paramID(c, "company_id")
	if !ok {
		return
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}

	remaining, err := h.events.TicketsRemaining(c.Request.Context(), companyID, eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"tickets_remaining": remaining}))
}

// Reserve handles POST /events/:id/reserve
func (h *BookingHandler) Reserve(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.reserve")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.reservations.Reserve(ctx, caller, &domain.ReserveRequest{
		EventID:      eventID,
		TicketTypeID: req.TicketTypeID,
		Tickets:      req.Tickets,
		CoverCosts:   req.CoverCosts,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// CancelReservation handles POST /events/cancel-reservation
func (h *BookingHandler) CancelReservation(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req BookingTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.reservations.CancelReservation(c.Request.Context(), caller, req.BookingToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ok"}))
}

// BookFree handles POST /events/book-free
func (h *BookingHandler) BookFree(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req BookingTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	booked, err := h.reservations.BookFree(c.Request.Context(), caller, req.BookingToken)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotPending) {
			c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeInvalidReservation, "invalid reservation"))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{
		"action_id":    booked.ActionID,
		"event_id":     booked.EventID,
		"ticket_count": booked.TicketCount,
	}))
}
