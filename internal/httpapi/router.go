package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/config"
	"github.com/nulldiary/backend/internal/httpapi/handlers"
	"github.com/nulldiary/backend/internal/httpapi/middleware"
	"github.com/nulldiary/backend/internal/ingest"
)

var ingestMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

func NewRouter(db *gorm.DB, cfg config.Config, counters ingest.CounterStore, publisher ingest.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "reason": "not_found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"status": "error", "reason": "method_not_allowed"})
	})

	h := handlers.NewHandler(db, cfg, counters, publisher)

	r.GET("/ping", h.Ping)

	// Public ingestion: the message can ride in headers, body, query or the
	// path tail.
	r.Match(ingestMethods, "/s", h.Ingest)
	r.Match(ingestMethods, "/s/*rest", h.Ingest)
	r.OPTIONS("/s", h.IngestOptions)
	r.OPTIONS("/s/*rest", h.IngestOptions)

	// Admin / moderation surface (JWT required)
	r.POST("/admin/login", h.Login)

	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(cfg.JWTSecret))
	admin.POST("/moderation/approve", h.Approve)
	admin.POST("/moderation/deny", h.Deny)
	admin.GET("/messages", h.ListMessages)
	admin.GET("/messages/:id", h.GetMessage)
	admin.POST("/messages/:id/edit", h.EditContent)
	admin.POST("/messages/:id/tags", h.SetTags)
	admin.GET("/denylist", h.ListDenylist)
	admin.POST("/denylist", h.UpdateDenylist)
	admin.GET("/ingestion-events", h.ListEvents)

	return r
}
