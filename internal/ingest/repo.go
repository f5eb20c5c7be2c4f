package ingest

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateMessage(ctx context.Context, m *models.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) CreateEvent(ctx context.Context, e *models.IngestionEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ListMessagesMissingShortID returns legacy rows the janitor still has to
// backfill, oldest first.
func (r *Repo) ListMessagesMissingShortID(ctx context.Context, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("short_id IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *Repo) SetShortID(ctx context.Context, messageID, shortID string) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND short_id IS NULL", messageID).
		Update("short_id", shortID).Error
}

// IsDuplicate matches unique-constraint violations across the drivers we run
// against (mysql in production, sqlite in tests).
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
