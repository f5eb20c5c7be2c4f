package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulldiary/backend/internal/httpapi/middleware"
	"github.com/nulldiary/backend/internal/moderation"
)

// moderationError maps engine errors onto the admin API contract:
// "Message not found" -> 404, any other conflict -> 400, the rest -> 500.
func moderationError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	if moderation.IsConflict(err) {
		msg = err.Error()
		if err == moderation.ErrNotFound {
			status = http.StatusNotFound
		} else {
			status = http.StatusBadRequest
		}
	}
	c.JSON(status, gin.H{"ok": false, "error": msg})
}

type approveReq struct {
	MessageID     string  `json:"message_id" binding:"required"`
	Reason        *string `json:"reason"`
	EditedContent *string `json:"edited_content"`
}

func (h *Handler) Approve(c *gin.Context) {
	var req approveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "message_id is required"})
		return
	}

	actor := middleware.Actor(c)
	if err := h.Engine.Approve(c.Request.Context(), req.MessageID, actor, req.Reason, req.EditedContent); err != nil {
		moderationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type denyReq struct {
	MessageID string  `json:"message_id" binding:"required"`
	Reason    *string `json:"reason"`
}

func (h *Handler) Deny(c *gin.Context) {
	var req denyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "message_id is required"})
		return
	}

	actor := middleware.Actor(c)
	if err := h.Engine.Deny(c.Request.Context(), req.MessageID, actor, req.Reason); err != nil {
		moderationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type editContentReq struct {
	EditedContent *string `json:"edited_content"`
}

func (h *Handler) EditContent(c *gin.Context) {
	var req editContentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid json"})
		return
	}

	actor := middleware.Actor(c)
	if err := h.Engine.EditContent(c.Request.Context(), c.Param("id"), actor, req.EditedContent); err != nil {
		moderationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type setTagsReq struct {
	Tags []string `json:"tags"`
}

func (h *Handler) SetTags(c *gin.Context) {
	var req setTagsReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Tags == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "tags must be an array of strings"})
		return
	}

	tags, err := h.Engine.SetTags(c.Request.Context(), c.Param("id"), req.Tags)
	if err != nil {
		moderationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tags": tags})
}
