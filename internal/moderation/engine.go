package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/common"
	"github.com/nulldiary/backend/internal/models"
)

// Error strings are part of the admin API contract; callers match on them to
// pick an HTTP status.
var (
	ErrNotFound      = errors.New("Message not found")
	ErrAlreadyDenied = errors.New("Message is already denied")
)

// NotPendingError rejects an approve on a message that already left pending.
type NotPendingError struct {
	Status models.ModerationStatus
}

func (e *NotPendingError) Error() string {
	return fmt.Sprintf("Message is not pending (current status: %s)", e.Status)
}

// IsConflict distinguishes invalid-transition errors from infrastructure
// failures; conflicts surface to the admin caller as 400/404, nothing else
// does.
func IsConflict(err error) bool {
	var np *NotPendingError
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyDenied) ||
		errors.As(err, &np)
}

// Engine is the moderation state machine: pending -> approved | denied, with
// retroactive denial of approved messages. Transitions are guarded inside the
// update statement so concurrent moderators cannot both win.
type Engine struct {
	repo *Repo
	now  func() time.Time
}

func NewEngine(repo *Repo) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// Approve moves a pending message to approved, records the actor and
// timestamp, optionally stores moderator-edited content, and appends one
// audit action.
func (e *Engine) Approve(ctx context.Context, messageID, actor string, reason, editedContent *string) error {
	msg, err := e.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	// Empty edited content falls back to the original text; whitespace-only
	// originals store null.
	edited := strings.TrimSpace(deref(editedContent))
	if edited == "" {
		edited = strings.TrimSpace(msg.Content)
	}
	var editedPtr *string
	if edited != "" {
		editedPtr = &edited
	}

	rows, err := e.repo.ApprovePending(ctx, messageID, actor, editedPtr, e.now())
	if err != nil {
		return err
	}
	if rows == 0 {
		// Lost the race or the message was never pending; re-read for the
		// precise rejection.
		current, err := e.repo.GetMessage(ctx, messageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return &NotPendingError{Status: current.ModerationStatus}
	}

	return e.appendAction(ctx, messageID, models.ActionApproved, actor, reason)
}

// Deny moves a pending or approved message to denied. Denying an approved
// message clears approved_at; denying a denied message is rejected.
func (e *Engine) Deny(ctx context.Context, messageID, actor string, reason *string) error {
	rows, err := e.repo.DenyUndeniable(ctx, messageID, actor, e.now())
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := e.repo.GetMessage(ctx, messageID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return ErrAlreadyDenied
	}

	return e.appendAction(ctx, messageID, models.ActionDenied, actor, reason)
}

// EditContent replaces the public display override without touching status,
// timestamps or the audit log.
func (e *Engine) EditContent(ctx context.Context, messageID, actor string, editedContent *string) error {
	if _, err := e.repo.GetMessage(ctx, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	var editedPtr *string
	if v := strings.TrimSpace(deref(editedContent)); v != "" {
		editedPtr = &v
	}
	return e.repo.UpdateEditedContent(ctx, messageID, actor, editedPtr)
}

// SetTags normalizes (trim, lowercase, dedupe, drop empties) and stores the
// tag set; an empty set stores null.
func (e *Engine) SetTags(ctx context.Context, messageID string, tags []string) ([]string, error) {
	if _, err := e.repo.GetMessage(ctx, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	seen := make(map[string]struct{})
	normalized := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		normalized = append(normalized, t)
	}

	var stored any
	if len(normalized) > 0 {
		stored = datatypes.JSONSlice[string](normalized)
	}
	if err := e.repo.UpdateTags(ctx, messageID, stored); err != nil {
		return nil, err
	}
	return normalized, nil
}

func (e *Engine) appendAction(ctx context.Context, messageID string, kind models.ActionKind, actor string, reason *string) error {
	id, err := common.NewULID()
	if err != nil {
		return err
	}
	return e.repo.AppendAction(ctx, &models.ModerationAction{
		ID:        id,
		MessageID: messageID,
		Action:    kind,
		Actor:     actor,
		Reason:    reason,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
