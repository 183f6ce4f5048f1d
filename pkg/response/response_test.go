package response

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess_OmitsError(t *testing.T) {
	b, err := json.Marshal(Success(map[string]int{"ticket_count": 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"ticket_count":2}}`, string(b))
}

func TestTicketsRemaining(t *testing.T) {
	resp := TicketsRemaining(3)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"data": {"tickets_remaining": 3},
		"error": {"code": "TICKETS_REMAINING", "message": "not enough tickets remaining"}
	}`, string(b))
	assert.Equal(t, 470, GetHTTPStatus(resp.Error.Code))
}

func TestErrorWithDetails(t *testing.T) {
	resp := ValidationFailed(map[string]string{"tickets[0].email": "must be an email"})

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Equal(t, ErrCodeValidationFailed, resp.Error.Code)
	assert.Equal(t, "must be an email", resp.Error.Details["tickets[0].email"])
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeTooManyRequests, http.StatusTooManyRequests},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{ErrCodeTicketsRemaining, StatusTicketsRemaining},
		{ErrCodeInsufficientStock, http.StatusBadRequest},
		{ErrCodeInvalidReservation, http.StatusBadRequest},
		{ErrCodeAlreadyProcessed, http.StatusGone},
		{ErrCodePaymentFailed, http.StatusInternalServerError},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestDefaultMessages(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		code string
		msg  string
	}{
		{"unauthorized", Unauthorized(""), ErrCodeUnauthorized, "Authentication required"},
		{"forbidden", Forbidden(""), ErrCodeForbidden, "Access denied"},
		{"not found", NotFound(""), ErrCodeNotFound, "Resource not found"},
		{"internal", InternalError(""), ErrCodeInternalError, "An internal error occurred"},
		{"hard conflict", InsufficientStock(""), ErrCodeInsufficientStock, "insufficient tickets remaining"},
		{"rate limited", TooManyRequests(""), ErrCodeTooManyRequests, "Too many requests, please try again later"},
		{"too large", PayloadTooLarge(""), ErrCodeTooLarge, "Request body too large"},
		{"unavailable", ServiceUnavailable(""), ErrCodeServiceUnavailable, "Service temporarily unavailable"},
		{"custom message", NotFound("Event not found"), ErrCodeNotFound, "Event not found"},
		{"bad request", BadRequest("event is not bookable"), ErrCodeBadRequest, "event is not bookable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.resp.Success)
			assert.Equal(t, tt.code, tt.resp.Error.Code)
			assert.Equal(t, tt.msg, tt.resp.Error.Message)
		})
	}
}
