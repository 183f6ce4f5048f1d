package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/gateway"
	"github.com/nosht/nosht/internal/service"
	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/middleware"
	"github.com/nosht/nosht/pkg/response"
)

// badRequestErrors are rejected with their own message and no side effects
var badRequestErrors = []error{
	domain.ErrEventNotBookable,
	domain.ErrTicketTypeNotFound,
	domain.ErrNoTickets,
	domain.ErrTooManyTickets,
	domain.ErrInvalidToken,
	domain.ErrPaidBookingNotAllowed,
	domain.ErrInvalidTransition,
	domain.ErrTicketLimitTooLow,
	domain.ErrNoActiveTicketType,
	domain.ErrDonationOptionNotFound,
	domain.ErrDonationsNotAllowed,
	domain.ErrGiftAidDetailsRequired,
	domain.ErrRefundNotPossible,
	domain.ErrInvalidWebhook,
}

// respondError maps a service error onto the response envelope
func respondError(c *gin.Context, err error) {
	if tre, ok := domain.AsTicketsRemaining(err); ok {
		c.JSON(response.StatusTicketsRemaining, response.TicketsRemaining(tre.Remaining))
		return
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
			return
		}
	}

	switch {
	case errors.Is(err, domain.ErrInsufficientTickets):
		c.JSON(http.StatusBadRequest, response.InsufficientStock(""))
	case errors.Is(err, domain.ErrEventNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
	case errors.Is(err, domain.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Ticket not found"))
	case errors.Is(err, domain.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Company not found"))
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, response.Forbidden(""))
	case errors.Is(err, domain.ErrReservationNotPending):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeConflict, err.Error()))
	case errors.Is(err, domain.ErrAlreadyProcessed):
		c.JSON(http.StatusGone, response.Error(response.ErrCodeAlreadyProcessed, err.Error()))
	case errors.Is(err, domain.ErrPaymentProvider):
		logger.Get().ErrorContext(c.Request.Context(), "payment provider error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.Error(response.ErrCodePaymentFailed, "Payment provider error"))
	case errors.Is(err, gateway.ErrNotConfigured):
		logger.Get().ErrorContext(c.Request.Context(), "payments not configured", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, response.ServiceUnavailable("Payments are not configured"))
	default:
		logger.Get().ErrorContext(c.Request.Context(), "request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, response.InternalError(""))
	}
}

// callerFrom reads the session set by middleware.SessionMiddleware
func callerFrom(c *gin.Context) (service.Caller, bool) {
	s, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
		return service.Caller{}, false
	}
	return service.Caller{UserID: s.UserID, CompanyID: s.CompanyID, Role: s.Role, Email: s.Email}, true
}

// paramID parses a positive integer path parameter
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid "+name))
		return 0, false
	}
	return id, true
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.ErrorWithDetails(response.ErrCodeValidationFailed, "Invalid request body",
		map[string]string{"body": err.Error()}))
}
