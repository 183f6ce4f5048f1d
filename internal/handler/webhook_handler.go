package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/service"
	"github.com/nosht/nosht/pkg/response"
	"github.com/nosht/nosht/pkg/telemetry"
)

// maxWebhookBody caps the payload read from the provider
const maxWebhookBody = 64 << 10

// WebhookHandler receives payment provider webhooks
type WebhookHandler struct {
	webhooks service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Stripe handles POST /stripe/webhook/:company_id. Verification failures are 400, oversized
// bodies 413, duplicates 410 and anything else 500 so the provider retries.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.stripe")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	companyID, ok := paramID(c, "company_id")
	if !ok {
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, response.PayloadTooLarge(""))
			return
		}
		c.JSON(http.StatusBadRequest, response.BadRequest("Failed to read body"))
		return
	}

	res, err := h.webhooks.HandleStripeWebhook(ctx, companyID, payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrCompanyNotFound) {
			c.JSON(http.StatusBadRequest, response.BadRequest("unknown company"))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}
