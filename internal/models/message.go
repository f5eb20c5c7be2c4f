package models

import (
	"time"

	"gorm.io/datatypes"
)

type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationDenied   ModerationStatus = "denied"
)

// Message is a single submitted text artifact. Content is immutable after
// creation; only the moderation fields and tags are ever updated.
type Message struct {
	ID string `gorm:"primaryKey;size:26" json:"id"`

	// Public identifier used in shareable URLs. Nullable because rows that
	// predate short IDs have none until the janitor backfills them.
	ShortID *string `gorm:"type:varchar(10);uniqueIndex" json:"short_id"`

	Content       string  `gorm:"type:text;not null" json:"content"`
	EditedContent *string `gorm:"type:text" json:"edited_content"`

	NormalizedContent string `gorm:"type:text" json:"-"`
	ContentHash       string `gorm:"type:varchar(64);index" json:"-"`

	Metadata datatypes.JSONMap `json:"metadata"`

	ModerationStatus ModerationStatus `gorm:"type:varchar(16);index;not null;default:pending" json:"moderation_status"`
	ModeratedBy      *string          `gorm:"type:varchar(128)" json:"moderated_by"`
	ApprovedAt       *time.Time       `json:"approved_at"`
	DeniedAt         *time.Time       `json:"denied_at"`

	Tags datatypes.JSONSlice[string] `json:"tags"`

	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// DisplayContent returns the moderator-edited text when present, otherwise
// the original submission.
func (m *Message) DisplayContent() string {
	if m.EditedContent != nil && *m.EditedContent != "" {
		return *m.EditedContent
	}
	return m.Content
}

type ParseStatus string

const (
	ParseSuccess     ParseStatus = "success"
	ParsePartial     ParseStatus = "partial" // legacy value, no longer produced
	ParseFailed      ParseStatus = "failed"
	ParseTooLong     ParseStatus = "too_long"
	ParseDeniedIP    ParseStatus = "denied_ip"
	ParseRateLimited ParseStatus = "rate_limited"
	ParseError       ParseStatus = "error"
)

// IngestionEvent is an immutable audit record of one inbound request,
// written whether or not the request produced a Message.
type IngestionEvent struct {
	ID         string    `gorm:"primaryKey;size:26" json:"id"`
	ReceivedAt time.Time `gorm:"autoCreateTime;index" json:"received_at"`

	Method  string            `gorm:"type:varchar(16);not null" json:"method"`
	Path    string            `gorm:"type:varchar(2048);not null" json:"path"`
	Query   datatypes.JSONMap `json:"query"`
	Headers datatypes.JSONMap `json:"headers"`
	Body    *string           `gorm:"type:text" json:"body"`

	SourceIP  *string `gorm:"type:varchar(64)" json:"source_ip"`
	UserAgent *string `gorm:"type:varchar(512)" json:"user_agent"`

	ParsedMessage *string     `gorm:"type:text" json:"parsed_message"`
	ParseStatus   ParseStatus `gorm:"type:varchar(16);index;not null" json:"parse_status"`

	// Set only when ParseStatus is success and a Message row was created.
	MessageID *string `gorm:"size:26;index" json:"message_id"`
}

func (IngestionEvent) TableName() string { return "ingestion_events" }

type ActionKind string

const (
	ActionApproved ActionKind = "approved"
	ActionDenied   ActionKind = "denied"
)

// ModerationAction is an append-only audit entry, one per successful
// transition. Never updated or deleted.
type ModerationAction struct {
	ID        string     `gorm:"primaryKey;size:26" json:"id"`
	MessageID string     `gorm:"size:26;index;not null" json:"message_id"`
	Action    ActionKind `gorm:"type:varchar(16);not null" json:"action"`
	Actor     string     `gorm:"type:varchar(128);not null" json:"actor"`
	Reason    *string    `gorm:"type:varchar(512)" json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
}

func (ModerationAction) TableName() string { return "moderation_actions" }

// DenylistEntry blocks a client network. Network is CIDR notation; bare
// addresses are normalized to /32 (v4) or /128 (v6) before storage.
type DenylistEntry struct {
	Network   string    `gorm:"primaryKey;type:varchar(64)" json:"network"`
	Reason    *string   `gorm:"type:varchar(512)" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (DenylistEntry) TableName() string { return "ip_denylist" }

type AdminUser struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (AdminUser) TableName() string { return "admin_users" }
