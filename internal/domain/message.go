package domain

import "time"

// Message types
const (
	MessageTypeIndividual = "individual" // one contractor <-> homeowner
	MessageTypeGroup      = "group"      // homeowner <-> all bidding contractors
)

// SenderLabelOwner is the homeowner's display label; homeowners are never aliased.
const SenderLabelOwner = "Project Owner"

// Message represents a project thread message (project_messages table).
// Messages are immutable once created; corrections are sent as new messages.
// The only transition is read_at being set exactly once.
type Message struct {
	CreatedAt   time.Time  `gorm:"column:created_at;index" json:"created_at"`
	ReadAt      *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	RecipientID *string    `gorm:"column:recipient_id;size:36;index" json:"recipient_id,omitempty"`
	ID          string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	ProjectID   string     `gorm:"column:project_id;size:36;index" json:"project_id"`
	SenderID    string     `gorm:"column:sender_id;size:36;index" json:"sender_id"`
	MessageType string     `gorm:"column:message_type;size:16" json:"message_type"`
	Content     string     `gorm:"column:content;type:text" json:"content"`
}

func (Message) TableName() string {
	return "project_messages"
}

// MessageRecipient is one delivery/read-tracking row per recipient of a
// message (message_recipients table). Direct messages get one row; group
// messages get one row per participant known at send time.
type MessageRecipient struct {
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	MessageID   string    `gorm:"column:message_id;primaryKey;size:36" json:"message_id"`
	RecipientID string    `gorm:"column:recipient_id;primaryKey;size:36" json:"recipient_id"`
}

func (MessageRecipient) TableName() string {
	return "message_recipients"
}

// MessageAttachment is a file attached to a message (message_attachments
// table). Attachments are immutable: delete-and-recreate, never edit-in-place.
type MessageAttachment struct {
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	ID         string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	MessageID  string    `gorm:"column:message_id;size:36;index" json:"message_id"`
	FileName   string    `gorm:"column:file_name;size:255" json:"file_name"`
	FileType   string    `gorm:"column:file_type;size:100" json:"file_type"`
	FileURL    string    `gorm:"column:file_url;size:512" json:"file_url"`
	StorageKey string    `gorm:"column:storage_key;size:512" json:"-"`
	FileSize   int64     `gorm:"column:file_size" json:"file_size"`
}

func (MessageAttachment) TableName() string {
	return "message_attachments"
}

// SendMessageRequest is the payload for sending a message
type SendMessageRequest struct {
	Content        string `form:"content" json:"content"`
	Kind           string `form:"type" json:"type" binding:"required,oneof=individual group"`
	CounterpartyID string `form:"counterparty_id" json:"counterparty_id,omitempty"`
}

// AttachmentView is the display-ready projection of an attachment
type AttachmentView struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	URL      string `json:"url"`
	FileSize int64  `json:"file_size"`
}

// FormattedMessage is the display-ready projection of a message: sender
// resolved to an alias (contractors) or the owner label, attachments resolved
// to URLs, isOwn computed for the viewing user. Never persisted.
type FormattedMessage struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"project_id"`
	SenderID    string           `json:"sender_id"`
	SenderLabel string           `json:"sender_label"`
	SenderAlias string           `json:"sender_alias,omitempty"`
	Type        string           `json:"type"`
	Content     string           `json:"content"`
	Timestamp   string           `json:"timestamp"`
	Attachments []AttachmentView `json:"attachments,omitempty"`
	IsOwn       bool             `json:"is_own"`
	IsRead      bool             `json:"is_read"`
}
