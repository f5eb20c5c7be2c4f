package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulldiary/backend/internal/ingest"
)

func corsHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, X-Message, X-Secret, X-Prompt")
}

// Ingest is the public submission endpoint: any of GET/POST/PUT/PATCH/DELETE
// on /s or /s/<anything>. The response always carries the outcome status and
// is never cached.
func (h *Handler) Ingest(c *gin.Context) {
	raw := ingest.Snapshot(c.Request, c.ClientIP())

	res, err := h.IngestSvc.Ingest(c.Request.Context(), raw)

	corsHeaders(c)
	c.Header("Cache-Control", "no-store")

	if err != nil {
		// The submission could not be durably recorded.
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res.Status})
}

func (h *Handler) IngestOptions(c *gin.Context) {
	corsHeaders(c)
	c.Header("Access-Control-Max-Age", "86400")
	c.Status(http.StatusNoContent)
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
