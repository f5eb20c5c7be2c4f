package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"github.com/nulldiary/backend/internal/common"
	"github.com/nulldiary/backend/internal/ingest"
	"github.com/nulldiary/backend/internal/models"
)

func (h *Handler) ListDenylist(c *gin.Context) {
	var entries []models.DenylistEntry
	if err := h.DB.WithContext(c.Request.Context()).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"networks": entries})
}

type denylistReq struct {
	Op      string  `json:"op"`
	Network string  `json:"network"`
	IP      string  `json:"ip"`
	Reason  *string `json:"reason"`
}

// UpdateDenylist adds or removes one blocked network. Bare addresses are
// normalized to single-host CIDRs before storage.
func (h *Handler) UpdateDenylist(c *gin.Context) {
	var req denylistReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if req.Op != "add" && req.Op != "remove" {
		common.Fail(c, http.StatusBadRequest, 10005, "op must be add or remove")
		return
	}

	raw := req.Network
	if raw == "" {
		raw = req.IP
	}
	if raw == "" {
		common.Fail(c, http.StatusBadRequest, 10006, "network (or ip) is required")
		return
	}

	network := ingest.NormalizeNetwork(raw)

	if req.Op == "add" {
		entry := models.DenylistEntry{Network: network, Reason: req.Reason}
		if err := h.DB.WithContext(c.Request.Context()).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&entry).Error; err != nil {
			common.Fail(c, http.StatusInternalServerError, 20001, "db error")
			return
		}
		common.OK(c, gin.H{"network": network})
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).
		Delete(&models.DenylistEntry{}, "network = ?", network).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"network": network})
}
