package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UpsertMailboxRequest registers or reactivates a polled mailbox.
type UpsertMailboxRequest struct {
	Address string `json:"address" binding:"required,email"`
}

// SetPollIntervalRequest updates a mailbox's polling cadence.
type SetPollIntervalRequest struct {
	PollIntervalSec int `json:"poll_interval_sec" binding:"required"`
}

// ListMailboxes returns all mailboxes of a tenant
func (h *Handlers) ListMailboxes(c *gin.Context) {
	tenantID, err := pathUint(c, "tenantId")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid tenant ID", Code: http.StatusBadRequest})
		return
	}

	boxes, err := h.mailboxes.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch mailboxes", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, boxes)
}

// UpsertMailbox creates a mailbox by address or reactivates an existing one
func (h *Handlers) UpsertMailbox(c *gin.Context) {
	tenantID, err := pathUint(c, "tenantId")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid tenant ID", Code: http.StatusBadRequest})
		return
	}

	var req UpsertMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}

	mb, err := h.mailboxes.UpsertByAddress(c.Request.Context(), tenantID, req.Address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to upsert mailbox", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusCreated, mb)
}

// ActivateMailbox activates one mailbox exclusively within its tenant
func (h *Handlers) ActivateMailbox(c *gin.Context) {
	tenantID, err := pathUint(c, "tenantId")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid tenant ID", Code: http.StatusBadRequest})
		return
	}
	mailboxID, err := pathUint(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid mailbox ID", Code: http.StatusBadRequest})
		return
	}

	if err := h.mailboxes.SetActiveExclusive(c.Request.Context(), tenantID, mailboxID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Mailbox not found", Code: http.StatusNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to activate mailbox", Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}

// SetPollInterval updates a mailbox's poll interval (clamped server-side)
func (h *Handlers) SetPollInterval(c *gin.Context) {
	tenantID, err := pathUint(c, "tenantId")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid tenant ID", Code: http.StatusBadRequest})
		return
	}
	mailboxID, err := pathUint(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid mailbox ID", Code: http.StatusBadRequest})
		return
	}

	var req SetPollIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}

	if err := h.mailboxes.SetPollInterval(c.Request.Context(), tenantID, mailboxID, req.PollIntervalSec); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Mailbox not found", Code: http.StatusNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to set poll interval", Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}

func pathUint(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	return uint(v), err
}
