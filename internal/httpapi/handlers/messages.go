package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/common"
	"github.com/nulldiary/backend/internal/moderation"
)

func (h *Handler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	filters := moderation.ListFilters{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("after"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.After = &t
		}
	}
	if v := c.Query("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.Before = &t
		}
	}

	msgs, total, err := h.ModRepo.ListMessages(c.Request.Context(), filters)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	common.OK(c, gin.H{"messages": msgs, "total": total})
}

func (h *Handler) GetMessage(c *gin.Context) {
	id := c.Param("id")

	msg, err := h.ModRepo.GetMessage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "message not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	events, err := h.ModRepo.ListEventsByMessage(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	actions, err := h.ModRepo.ListActionsByMessage(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, gin.H{"message": msg, "events": events, "actions": actions})
}

func (h *Handler) ListEvents(c *gin.Context) {
	if messageID := c.Query("message_id"); messageID != "" {
		events, err := h.ModRepo.ListEventsByMessage(c.Request.Context(), messageID)
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 20001, "db error")
			return
		}
		common.OK(c, gin.H{"events": events})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	events, err := h.ModRepo.ListEvents(c.Request.Context(), limit, offset)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"events": events})
}
