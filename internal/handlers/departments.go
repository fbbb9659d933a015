package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inteliroute/internal/model"
)

// DepartmentRequest creates or updates a routing target.
type DepartmentRequest struct {
	Name         string `json:"name" binding:"required"`
	RoutingEmail string `json:"routing_email"`
	Enabled      *bool  `json:"enabled"`
}

// ListDepartments returns all departments of a tenant
func (h *Handlers) ListDepartments(c *gin.Context) {
	tenantID, err := pathUint(c, "tenantId")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid tenant ID", Code: http.StatusBadRequest})
		return
	}

	deps, err := h.departments.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch departments", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, deps)
}

// CreateDepartment creates a new department for a tenant
func (h *Handlers) CreateDepartment(c *gin.Context) {
	tenantID, err := pathUint(c, "tenantId")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid tenant ID", Code: http.StatusBadRequest})
		return
	}

	var req DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	dep := model.Department{
		TenantID:     tenantID,
		Name:         req.Name,
		RoutingEmail: req.RoutingEmail,
		Enabled:      enabled,
	}
	if err := h.departments.Create(c.Request.Context(), &dep); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to create department", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusCreated, dep)
}

// UpdateDepartment updates an existing department
func (h *Handlers) UpdateDepartment(c *gin.Context) {
	id, err := pathUint(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid department ID", Code: http.StatusBadRequest})
		return
	}

	dep, err := h.departments.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch department", Code: http.StatusInternalServerError})
		return
	}
	if dep == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Department not found", Code: http.StatusNotFound})
		return
	}

	var req DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}

	if req.Name != "" {
		dep.Name = req.Name
	}
	dep.RoutingEmail = req.RoutingEmail
	if req.Enabled != nil {
		dep.Enabled = *req.Enabled
	}

	if err := h.departments.Update(c.Request.Context(), dep); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update department", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, dep)
}

// EnableDepartment enables a department by ID
func (h *Handlers) EnableDepartment(c *gin.Context) {
	h.setDepartmentEnabled(c, true)
}

// DisableDepartment disables a department by ID
func (h *Handlers) DisableDepartment(c *gin.Context) {
	h.setDepartmentEnabled(c, false)
}

func (h *Handlers) setDepartmentEnabled(c *gin.Context, enabled bool) {
	id, err := pathUint(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid department ID", Code: http.StatusBadRequest})
		return
	}

	if err := h.departments.SetEnabled(c.Request.Context(), id, enabled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Department not found", Code: http.StatusNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update department", Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}
