package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inteliroute/internal/model"
)

// ListMessages returns a page of messages, optionally filtered by status
func (h *Handlers) ListMessages(c *gin.Context) {
	status := model.RouteStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := h.messages.ListByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch messages", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// GetMessage returns a single message by ID
func (h *Handlers) GetMessage(c *gin.Context) {
	id, err := pathUint(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid message ID", Code: http.StatusBadRequest})
		return
	}

	msg, err := h.messages.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch message", Code: http.StatusInternalServerError})
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Message not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ListMessageEvents returns the routing audit trail for a message
func (h *Handlers) ListMessageEvents(c *gin.Context) {
	id, err := pathUint(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid message ID", Code: http.StatusBadRequest})
		return
	}

	events, err := h.events.ListByMessage(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch route events", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, events)
}

// RequeueMessage resets a terminal message to New for another routing attempt
func (h *Handlers) RequeueMessage(c *gin.Context) {
	id, err := pathUint(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid message ID", Code: http.StatusBadRequest})
		return
	}

	if err := h.messages.Requeue(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Message not found or already pending", Code: http.StatusNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to requeue message", Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}
