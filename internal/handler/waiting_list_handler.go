package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nosht/nosht/internal/service"
	"github.com/nosht/nosht/pkg/response"
)

// WaitingListHandler handles waiting list requests
type WaitingListHandler struct {
	waitingList service.WaitingListService
}

// NewWaitingListHandler creates a new WaitingListHandler
func NewWaitingListHandler(waitingList service.WaitingListService) *WaitingListHandler {
	return &WaitingListHandler{waitingList: waitingList}
}

// Add handles POST /events/:id/waiting-list
func (h *WaitingListHandler) Add(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}

	added, err := h.waitingList.Add(c.Request.Context(), caller, eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"added": added}))
}

// Remove handles GET /companies/:company_id/events/:id/waiting-list/remove?token=
func (h *WaitingListHandler) Remove(c *gin.Context) {
	companyID, ok := paramID(c, "company_id")
	if !ok {
		return
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("token is required"))
		return
	}

	if err := h.waitingList.RemoveWithToken(c.Request.Context(), companyID, eventID, token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "removed"}))
}
