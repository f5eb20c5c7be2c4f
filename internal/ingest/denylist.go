package ingest

import (
	"context"
	"net/netip"
	"strings"

	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/models"
)

// NormalizeNetwork turns a bare host address into single-host CIDR notation
// (/32 for v4, /128 for v6); explicit CIDRs pass through untouched.
func NormalizeNetwork(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.Contains(trimmed, "/") {
		return trimmed
	}
	if strings.Contains(trimmed, ":") {
		return trimmed + "/128"
	}
	return trimmed + "/32"
}

type Denylist struct {
	db *gorm.DB
}

func NewDenylist(db *gorm.DB) *Denylist {
	return &Denylist{db: db}
}

// Match reports whether ip falls inside any blocked network. Unparseable
// stored networks are skipped rather than failing the whole check.
func (d *Denylist) Match(ctx context.Context, ip string) (bool, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false, nil
	}

	var entries []models.DenylistEntry
	if err := d.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return false, err
	}

	for _, entry := range entries {
		prefix, err := netip.ParsePrefix(NormalizeNetwork(entry.Network))
		if err != nil {
			continue
		}
		if prefix.Contains(addr.Unmap()) {
			return true, nil
		}
	}
	return false, nil
}
