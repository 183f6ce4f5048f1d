package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nosht/nosht/internal/domain"
	"github.com/nosht/nosht/internal/service"
	"github.com/nosht/nosht/pkg/response"
)

// PrepareDonationRequest is the body of POST /events/:id/donation/prepare
type PrepareDonationRequest struct {
	DonationOptionID int64           `json:"donation_option_id" binding:"required"`
	GiftAid          bool            `json:"gift_aid"`
	GiftAidDetails   *domain.GiftAid `json:"gift_aid_details"`
}

// DonationHandler handles donation requests
type DonationHandler struct {
	donations service.DonationService
}

// NewDonationHandler creates a new DonationHandler
func NewDonationHandler(donations service.DonationService) *DonationHandler {
	return &DonationHandler{donations: donations}
}

// Prepare handles POST /events/:id/donation/prepare
func (h *DonationHandler) Prepare(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PrepareDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	intent, err := h.donations.Prepare(c.Request.Context(), caller, &service.PrepareDonationRequest{
		EventID:          eventID,
		DonationOptionID: req.DonationOptionID,
		GiftAid:          req.GiftAid,
		GiftAidDetails:   req.GiftAidDetails,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(intent))
}
