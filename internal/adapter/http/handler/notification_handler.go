package handler

import (
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/response"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the vendor's in-app feed.
type NotificationHandler struct {
	feed ports.NotificationFeed
}

func NewNotificationHandler(feed ports.NotificationFeed) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// List handles GET /api/v1/vendor/notifications?unread=true.
func (h *NotificationHandler) List(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}
	page := pageQuery(c)
	events, total, err := h.feed.List(c.Request.Context(), vendor.ID, c.Query("unread") == "true", page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, events, total, page.Page, page.PageSize)
}

// MarkRead handles POST /api/v1/vendor/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.feed.MarkRead(c.Request.Context(), vendor.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "read": true})
}
