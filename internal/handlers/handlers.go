package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"inteliroute/internal/metrics"
	"inteliroute/internal/repository"
	"inteliroute/internal/worker"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db          *gorm.DB
	mailboxes   *repository.MailboxRepository
	messages    *repository.MessageRepository
	departments *repository.DepartmentRepository
	events      *repository.RouteEventRepository
	fetch       *worker.FetchWorker
	routing     *worker.RoutingWorker
	metrics     *metrics.Metrics
}

// NewHandlers creates new HTTP handlers
func NewHandlers(
	db *gorm.DB,
	mailboxes *repository.MailboxRepository,
	messages *repository.MessageRepository,
	departments *repository.DepartmentRepository,
	events *repository.RouteEventRepository,
	fetch *worker.FetchWorker,
	routing *worker.RoutingWorker,
	m *metrics.Metrics,
) *Handlers {
	return &Handlers{
		db:          db,
		mailboxes:   mailboxes,
		messages:    messages,
		departments: departments,
		events:      events,
		fetch:       fetch,
		routing:     routing,
		metrics:     m,
	}
}

// SetupRoutes registers all routes on the router
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/tenants/:tenantId/mailboxes", h.ListMailboxes)
		v1.POST("/tenants/:tenantId/mailboxes", h.UpsertMailbox)
		v1.POST("/tenants/:tenantId/mailboxes/:id/activate", h.ActivateMailbox)
		v1.PUT("/tenants/:tenantId/mailboxes/:id/poll-interval", h.SetPollInterval)

		v1.GET("/tenants/:tenantId/departments", h.ListDepartments)
		v1.POST("/tenants/:tenantId/departments", h.CreateDepartment)
		v1.PUT("/departments/:id", h.UpdateDepartment)
		v1.POST("/departments/:id/enable", h.EnableDepartment)
		v1.POST("/departments/:id/disable", h.DisableDepartment)

		v1.GET("/messages", h.ListMessages)
		v1.GET("/messages/:id", h.GetMessage)
		v1.GET("/messages/:id/events", h.ListMessageEvents)
		v1.POST("/messages/:id/requeue", h.RequeueMessage)

		v1.GET("/workers", h.WorkerStatus)
		v1.POST("/workers/fetch/run", h.RunFetchOnce)
		v1.POST("/workers/routing/run", h.RunRoutingOnce)
	}
}

// ErrorResponse is the common error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
