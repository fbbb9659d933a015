package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// WorkerStatus reports both background loops
func (h *Handlers) WorkerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fetch": gin.H{
			"running":  h.fetch.IsRunning(),
			"last_run": h.fetch.LastRun().Format(time.RFC3339),
		},
		"routing": gin.H{
			"running":  h.routing.IsRunning(),
			"last_run": h.routing.LastRun().Format(time.RFC3339),
		},
	})
}

// RunFetchOnce triggers one fetch scan outside the normal cadence
func (h *Handlers) RunFetchOnce(c *gin.Context) {
	h.fetch.ScanOnce(c.Request.Context())
	c.Status(http.StatusOK)
}

// RunRoutingOnce triggers one routing batch outside the normal cadence
func (h *Handlers) RunRoutingOnce(c *gin.Context) {
	h.routing.ProcessBatch(c.Request.Context())
	c.Status(http.StatusOK)
}
