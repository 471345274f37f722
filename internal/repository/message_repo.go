package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hearthbid/hearthbid-backend/internal/common"
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"github.com/hearthbid/hearthbid-backend/pkg/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageFeed delivers row-insert notifications for project threads.
// Delivery is at-least-once; deduplication belongs to the subscriber.
type MessageFeed interface {
	PublishMessage(projectID string, msg *domain.Message)
	SubscribeMessages(projectID string, fn func(*domain.Message)) func()
}

// FileUpload is one incoming attachment payload
type FileUpload struct {
	Body        io.Reader
	Name        string
	ContentType string
	Size        int64
}

// MessageRepository is the message store adapter: the sole boundary to
// message persistence. Services interact with messages through this
// interface, never through raw storage calls.
type MessageRepository interface {
	Create(msg *domain.Message, hasAttachments bool) error
	FanOutRecipients(messageID string, recipientIDs []string) error
	AttachFiles(ctx context.Context, projectID, messageID string, files []FileUpload) ([]*domain.MessageAttachment, error)
	QueryMessages(projectID, viewerID string) ([]*domain.Message, error)
	AttachmentsByMessages(messageIDs []string) (map[string][]*domain.MessageAttachment, error)
	FindByID(id string) (*domain.Message, error)
	MarkRead(messageID string) error
	UnreadCount(projectID, viewerID string) (int64, error)
	// FirstMessageTimes returns each sender's earliest message time on the project
	FirstMessageTimes(projectID string) (map[string]time.Time, error)
	Subscribe(projectID, viewerID string, onInsert func(*domain.Message)) func()
}

type messageRepository struct {
	db    *gorm.DB
	store storage.ObjectStore
	feed  MessageFeed
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB, store storage.ObjectStore, feed MessageFeed) MessageRepository {
	return &messageRepository{db: db, store: store, feed: feed}
}

// Create validates and persists a message row, then notifies the feed.
// Fan-out and attachments are separate calls: a failed fan-out must not
// take the message row with it.
func (r *messageRepository) Create(msg *domain.Message, hasAttachments bool) error {
	switch msg.MessageType {
	case domain.MessageTypeIndividual:
		if msg.RecipientID == nil || *msg.RecipientID == "" {
			return fmt.Errorf("%w: individual message requires a recipient", common.ErrInvalidMessage)
		}
		if *msg.RecipientID == msg.SenderID {
			return fmt.Errorf("%w: sender cannot message themselves", common.ErrInvalidMessage)
		}
	case domain.MessageTypeGroup:
		if msg.RecipientID != nil {
			return fmt.Errorf("%w: group message must not carry a recipient", common.ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", common.ErrInvalidMessage, msg.MessageType)
	}

	if msg.Content == "" && !hasAttachments {
		return fmt.Errorf("%w: empty content with no attachments", common.ErrInvalidMessage)
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	ctx, cancel := storeCtx()
	defer cancel()

	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return mapStoreErr(err)
	}

	if r.feed != nil {
		r.feed.PublishMessage(msg.ProjectID, msg)
	}
	return nil
}

// FanOutRecipients creates one delivery row per recipient. Idempotent:
// re-running with the same set upserts on (message_id, recipient_id) and
// never creates duplicates.
func (r *messageRepository) FanOutRecipients(messageID string, recipientIDs []string) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]domain.MessageRecipient, len(recipientIDs))
	for i, id := range recipientIDs {
		rows[i] = domain.MessageRecipient{
			MessageID:   messageID,
			RecipientID: id,
			CreatedAt:   now,
		}
	}

	ctx, cancel := storeCtx()
	defer cancel()

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	return mapStoreErr(err)
}

// AttachFiles uploads each file to object storage and persists an attachment
// row referencing the returned URL. Per-file failures are collected: one
// failed upload does not abort the rest, and the caller receives the files
// that did attach plus a *common.PartialAttachmentError for the ones that
// did not.
func (r *messageRepository) AttachFiles(ctx context.Context, projectID, messageID string, files []FileUpload) ([]*domain.MessageAttachment, error) {
	var attached []*domain.MessageAttachment
	var failures []common.AttachmentFailure

	for _, f := range files {
		key := storage.AttachmentKey(projectID, messageID, f.Name)

		result, err := r.store.Upload(ctx, key, f.Body, f.ContentType, f.Size)
		if err != nil {
			failures = append(failures, common.AttachmentFailure{FileName: f.Name, Err: err})
			continue
		}

		row := &domain.MessageAttachment{
			ID:         uuid.New().String(),
			MessageID:  messageID,
			FileName:   f.Name,
			FileSize:   f.Size,
			FileType:   f.ContentType,
			FileURL:    r.store.ResolveURL(result.Key),
			StorageKey: result.Key,
			CreatedAt:  time.Now(),
		}

		dbCtx, cancel := storeCtx()
		err = r.db.WithContext(dbCtx).Create(row).Error
		cancel()
		if err != nil {
			// The row is the source of truth; drop the orphaned object
			r.store.Delete(ctx, result.Key) //nolint:errcheck
			failures = append(failures, common.AttachmentFailure{FileName: f.Name, Err: mapStoreErr(err)})
			continue
		}

		attached = append(attached, row)
	}

	if len(failures) > 0 {
		return attached, &common.PartialAttachmentError{MessageID: messageID, Failures: failures}
	}
	return attached, nil
}

// QueryMessages returns the messages visible to viewerID in created_at order.
// Visible means: viewer is the sender, the direct recipient, or the message
// is a group message and the viewer is a known participant (project owner or
// aliased contractor). An empty viewerID returns the full project thread.
func (r *messageRepository) QueryMessages(projectID, viewerID string) ([]*domain.Message, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	query := r.db.WithContext(ctx).Where("project_id = ?", projectID)

	if viewerID != "" {
		query = query.Where(
			r.db.Where("sender_id = ?", viewerID).
				Or("recipient_id = ?", viewerID).
				Or(`message_type = ? AND (
					EXISTS (SELECT 1 FROM contractor_aliases ca
						WHERE ca.project_id = project_messages.project_id AND ca.contractor_id = ?)
					OR EXISTS (SELECT 1 FROM projects p
						WHERE p.id = project_messages.project_id AND p.owner_id = ?))`,
					domain.MessageTypeGroup, viewerID, viewerID),
		)
	}

	var messages []*domain.Message
	err := query.Order("created_at, id").Find(&messages).Error
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return messages, nil
}

// AttachmentsByMessages bulk-fetches attachments keyed by message ID
func (r *messageRepository) AttachmentsByMessages(messageIDs []string) (map[string][]*domain.MessageAttachment, error) {
	if len(messageIDs) == 0 {
		return map[string][]*domain.MessageAttachment{}, nil
	}

	ctx, cancel := storeCtx()
	defer cancel()

	var rows []*domain.MessageAttachment
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, mapStoreErr(err)
	}

	byMessage := make(map[string][]*domain.MessageAttachment, len(messageIDs))
	for _, row := range rows {
		byMessage[row.MessageID] = append(byMessage[row.MessageID], row)
	}
	return byMessage, nil
}

// FindByID finds a message by ID
func (r *messageRepository) FindByID(id string) (*domain.Message, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var msg domain.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrMessageNotFound
		}
		return nil, mapStoreErr(err)
	}
	return &msg, nil
}

// MarkRead sets read_at if and only if it is currently null. Marking an
// already-read message is a no-op, not an error; the first timestamp wins.
func (r *messageRepository) MarkRead(messageID string) error {
	ctx, cancel := storeCtx()
	defer cancel()

	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND read_at IS NULL", messageID).
		Update("read_at", time.Now()).Error
	return mapStoreErr(err)
}

// UnreadCount counts unread messages delivered to the viewer on a project
func (r *messageRepository) UnreadCount(projectID, viewerID string) (int64, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Joins("JOIN message_recipients mr ON mr.message_id = project_messages.id").
		Where("project_messages.project_id = ? AND mr.recipient_id = ? AND project_messages.read_at IS NULL", projectID, viewerID).
		Count(&count).Error
	if err != nil {
		return 0, mapStoreErr(err)
	}
	return count, nil
}

// FirstMessageTimes returns sender_id -> earliest message created_at. The
// minimum is computed here rather than in SQL: date aggregates do not
// round-trip uniformly across the mysql and sqlite drivers.
func (r *messageRepository) FirstMessageTimes(projectID string) (map[string]time.Time, error) {
	ctx, cancel := storeCtx()
	defer cancel()

	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Select("sender_id", "created_at").
		Where("project_id = ?", projectID).
		Find(&msgs).Error
	if err != nil {
		return nil, mapStoreErr(err)
	}

	times := make(map[string]time.Time, len(msgs))
	for _, m := range msgs {
		if t, ok := times[m.SenderID]; !ok || m.CreatedAt.Before(t) {
			times[m.SenderID] = m.CreatedAt
		}
	}
	return times, nil
}

// Subscribe registers a live-update listener scoped to the project,
// optionally filtered to messages visible to viewerID. The returned function
// detaches the listener.
func (r *messageRepository) Subscribe(projectID, viewerID string, onInsert func(*domain.Message)) func() {
	if r.feed == nil {
		return func() {}
	}
	return r.feed.SubscribeMessages(projectID, func(msg *domain.Message) {
		if viewerID != "" && !visibleTo(msg, viewerID) {
			return
		}
		onInsert(msg)
	})
}

// visibleTo applies the direct-message visibility rule to feed events.
// Group messages pass: the messaging service authorizes every subscriber as
// a project participant before attaching it to the feed.
func visibleTo(msg *domain.Message, viewerID string) bool {
	if msg.MessageType == domain.MessageTypeGroup {
		return true
	}
	if msg.SenderID == viewerID {
		return true
	}
	return msg.RecipientID != nil && *msg.RecipientID == viewerID
}
