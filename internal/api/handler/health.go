package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	queueLen func() int
}

// NewHealthHandler creates a new health handler. queueLen may be nil.
func NewHealthHandler(queueLen func() int) *HealthHandler {
	return &HealthHandler{queueLen: queueLen}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.queueLen != nil {
		resp["ingest_queue"] = h.queueLen()
	}
	c.JSON(http.StatusOK, resp)
}
