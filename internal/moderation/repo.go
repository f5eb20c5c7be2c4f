package moderation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ApprovePending transitions pending -> approved in one conditional update.
// Returns the number of rows changed; zero means the message was missing or
// not pending anymore.
func (r *Repo) ApprovePending(ctx context.Context, id, actor string, editedContent *string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND moderation_status = ?", id, models.ModerationPending).
		Updates(map[string]any{
			"moderation_status": models.ModerationApproved,
			"approved_at":       now,
			"moderated_by":      actor,
			"edited_content":    editedContent,
		})
	return res.RowsAffected, res.Error
}

// DenyUndeniable transitions pending or approved -> denied, clearing
// approved_at so timelines stay consistent on retroactive denial.
func (r *Repo) DenyUndeniable(ctx context.Context, id, actor string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND moderation_status IN ?", id,
			[]models.ModerationStatus{models.ModerationPending, models.ModerationApproved}).
		Updates(map[string]any{
			"moderation_status": models.ModerationDenied,
			"denied_at":         now,
			"approved_at":       nil,
			"moderated_by":      actor,
		})
	return res.RowsAffected, res.Error
}

func (r *Repo) UpdateEditedContent(ctx context.Context, id, actor string, editedContent *string) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"edited_content": editedContent,
			"moderated_by":   actor,
		}).Error
}

func (r *Repo) UpdateTags(ctx context.Context, id string, tags any) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Update("tags", tags).Error
}

func (r *Repo) AppendAction(ctx context.Context, a *models.ModerationAction) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repo) ListActionsByMessage(ctx context.Context, messageID string) ([]models.ModerationAction, error) {
	var actions []models.ModerationAction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&actions).Error
	return actions, err
}

// ListFilters narrows the admin message listing.
type ListFilters struct {
	Status string
	Search string
	After  *time.Time
	Before *time.Time
	Limit  int
	Offset int
}

func (r *Repo) ListMessages(ctx context.Context, f ListFilters) ([]models.Message, int64, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	base := r.db.WithContext(ctx).Model(&models.Message{})
	if f.Status != "" {
		base = base.Where("moderation_status = ?", f.Status)
	}
	if f.Search != "" {
		base = base.Where("content LIKE ?", "%"+f.Search+"%")
	}
	if f.After != nil {
		base = base.Where("created_at > ?", *f.After)
	}
	if f.Before != nil {
		base = base.Where("created_at < ?", *f.Before)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []models.Message
	err := base.
		Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&msgs).Error
	return msgs, total, err
}

func (r *Repo) ListEventsByMessage(ctx context.Context, messageID string) ([]models.IngestionEvent, error) {
	var events []models.IngestionEvent
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("received_at DESC").
		Find(&events).Error
	return events, err
}

func (r *Repo) ListEvents(ctx context.Context, limit, offset int) ([]models.IngestionEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.IngestionEvent
	err := r.db.WithContext(ctx).
		Order("received_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, err
}

// DeleteDeniedOlderThan is the housekeeping path; the moderation engine
// itself never deletes messages.
func (r *Repo) DeleteDeniedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("moderation_status = ? AND created_at < ?", models.ModerationDenied, cutoff).
		Delete(&models.Message{})
	return res.RowsAffected, res.Error
}
