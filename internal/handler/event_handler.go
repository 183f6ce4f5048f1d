package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/service"
	"github.com/nosht/nosht/pkg/response"
)

// TicketLimitRequest is the body of PUT /events/:id/ticket-limit. A null limit removes it.
type TicketLimitRequest struct {
	TicketLimit *int `json:"ticket_limit" binding:"omitempty,min=1"`
}

// TicketTypeInput is one ticket type in PUT /events/:id/ticket-types. Omit ID to create a type.
type TicketTypeInput struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name" binding:"required,max=63"`
	Price        *decimal.Decimal `json:"price"`
	SlotsUsed    int              `json:"slots_used" binding:"min=0"`
	Mode         string           `json:"mode" binding:"omitempty,oneof=ticket donation"`
	CustomAmount bool             `json:"custom_amount"`
	Active       bool             `json:"active"`
}

// TicketTypesRequest is the body of PUT /events/:id/ticket-types
type TicketTypesRequest struct {
	TicketTypes []TicketTypeInput `json:"ticket_types" binding:"required,min=1,dive"`
}

// CancelTicketRequest is the body of POST /events/:id/tickets/:ticket_id/cancel
type CancelTicketRequest struct {
	RefundAmount *decimal.Decimal `json:"refund_amount"`
}

// EventHandler handles host operations on events
type EventHandler struct {
	events service.EventService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(events service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// SetTicketLimit handles PUT /events/:id/ticket-limit
func (h *EventHandler) SetTicketLimit(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TicketLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	remaining, err := h.events.SetTicketLimit(c.Request.Context(), caller, eventID, req.TicketLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"tickets_remaining": remaining}))
}

// UpdateTicketTypes handles PUT /events/:id/ticket-types
func (h *EventHandler) UpdateTicketTypes(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TicketTypesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	types := make([]domain.TicketType, 0, len(req.TicketTypes))
	for _, in := range req.TicketTypes {
		tt := domain.TicketType{
			ID:           in.ID,
			Name:         in.Name,
			SlotsUsed:    in.SlotsUsed,
			Mode:         in.Mode,
			CustomAmount: in.CustomAmount,
			Active:       in.Active,
		}
		if in.Price != nil && in.Price.IsPositive() {
			tt.Price = decimal.NewNullDecimal(*in.Price)
		}
		types = append(types, tt)
	}

	if err := h.events.UpdateTicketTypes(c.Request.Context(), caller, eventID, types); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ok"}))
}

// CancelTicket handles POST /events/:id/tickets/:ticket_id/cancel
func (h *EventHandler) CancelTicket(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ticketID, ok := paramID(c, "ticket_id")
	if !ok {
		return
	}
	var req CancelTicketRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	if err := h.events.CancelTicket(c.Request.Context(), caller, eventID, ticketID, req.RefundAmount); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ok"}))
}
