package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hearthbid/hearthbid-backend/internal/common"
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"github.com/hearthbid/hearthbid-backend/internal/repository"
	pkgcache "github.com/hearthbid/hearthbid-backend/pkg/cache"
	pkglogger "github.com/hearthbid/hearthbid-backend/pkg/logger"
)

// SendInput is one send request from the presentation layer
type SendInput struct {
	ProjectID      string
	SenderID       string
	Body           string
	Kind           string // domain.MessageTypeIndividual or domain.MessageTypeGroup
	CounterpartyID string // direct messages only
	Files          []repository.FileUpload
}

// SendResult reports the outcome of a send. Delivered=false means the
// message row exists but recipient fan-out failed: the sender still sees
// their message, the UI should warn that delivery may be incomplete.
type SendResult struct {
	Message     *domain.FormattedMessage
	FailedFiles []string
	Delivered   bool
}

// MessagingService orchestrates sends, thread reads, and live updates:
// recipient resolution, alias attachment, formatting, and subscription
// deduplication.
type MessagingService interface {
	Send(ctx context.Context, in SendInput) (*SendResult, error)
	GetMessages(projectID, viewerID string) ([]*domain.FormattedMessage, error)
	SubscribeToMessages(projectID, viewerID string, callback func(*domain.FormattedMessage)) (func(), error)
	MarkMessageAsRead(messageID string) bool
	UnreadCount(projectID, viewerID string) (int64, error)
}

type messagingService struct {
	messages repository.MessageRepository
	aliases  AliasService
	members  repository.MemberRepository
	projects repository.ProjectRepository
	cache    pkgcache.Service
}

// NewMessagingService creates a new MessagingService
func NewMessagingService(messages repository.MessageRepository, aliases AliasService, members repository.MemberRepository, projects repository.ProjectRepository, cache pkgcache.Service) MessagingService {
	return &messagingService{
		messages: messages,
		aliases:  aliases,
		members:  members,
		projects: projects,
		cache:    cache,
	}
}

// Send validates the request, resolves recipients, persists the message and
// its fan-out rows, and attaches files. Message creation is the hard-failure
// boundary: nothing is persisted if it fails, and failures after it are soft
// (the message content must never silently vanish).
func (s *messagingService) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	if in.Body == "" && len(in.Files) == 0 {
		return nil, common.ErrEmptyMessage
	}

	sender, err := s.members.FindByID(in.SenderID)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.projects.OwnerID(in.ProjectID)
	if err != nil {
		return nil, err
	}

	// A contractor's first message is a first interaction: register the
	// alias before anything is displayed under it.
	if !sender.IsHomeowner() {
		if _, err := s.aliases.EnsureAlias(in.ProjectID, in.SenderID); err != nil {
			return nil, err
		}
	}

	msg := &domain.Message{
		ProjectID:   in.ProjectID,
		SenderID:    in.SenderID,
		MessageType: in.Kind,
		Content:     in.Body,
		CreatedAt:   time.Now(),
	}

	var recipients []string
	switch in.Kind {
	case domain.MessageTypeIndividual:
		counterparty, err := s.resolveCounterparty(sender, ownerID, in.CounterpartyID)
		if err != nil {
			return nil, err
		}
		msg.RecipientID = &counterparty
		recipients = []string{counterparty}

	case domain.MessageTypeGroup:
		recipients, err = s.resolveBroadcastSet(in.ProjectID, in.SenderID, ownerID, sender.IsHomeowner())
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", common.ErrInvalidMessage, in.Kind)
	}

	// Hard failure boundary: no partial message with no row.
	if err := s.messages.Create(msg, len(in.Files) > 0); err != nil {
		return nil, err
	}

	result := &SendResult{Delivered: true}

	if err := s.messages.FanOutRecipients(msg.ID, recipients); err != nil {
		// The row exists; the sender's own view is intact. Report a soft
		// failure so the UI can warn that delivery may be incomplete.
		log := pkglogger.WithProjectID(in.ProjectID)
		log.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("recipient fan-out failed after message creation")
		result.Delivered = false
	}

	var attachments []*domain.MessageAttachment
	if len(in.Files) > 0 {
		var attachErr error
		attachments, attachErr = s.messages.AttachFiles(ctx, in.ProjectID, msg.ID, in.Files)
		var partial *common.PartialAttachmentError
		if errors.As(attachErr, &partial) {
			result.FailedFiles = partial.FailedFileNames()
		} else if attachErr != nil {
			return nil, attachErr
		}
	}

	s.invalidateUnread(in.ProjectID, recipients)

	aliasMap, err := s.aliases.AliasMap(in.ProjectID)
	if err != nil {
		aliasMap = map[string]string{}
	}
	result.Message = s.format(msg, attachments, aliasMap, ownerID, in.SenderID)
	return result, nil
}

// resolveCounterparty resolves the single recipient of a direct message:
// the homeowner when a contractor sends, a specific contractor when the
// homeowner sends.
func (s *messagingService) resolveCounterparty(sender *domain.Member, ownerID, counterpartyID string) (string, error) {
	if !sender.IsHomeowner() {
		// Contractors can only message the project owner directly
		if ownerID == "" {
			return "", common.ErrRecipientNotFound
		}
		if counterpartyID != "" && counterpartyID != ownerID {
			return "", common.ErrRecipientNotFound
		}
		return ownerID, nil
	}

	if counterpartyID == "" {
		return "", common.ErrRecipientNotFound
	}
	if counterpartyID == sender.ID {
		return "", fmt.Errorf("%w: sender cannot message themselves", common.ErrInvalidMessage)
	}
	counterparty, err := s.members.FindByID(counterpartyID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return "", common.ErrRecipientNotFound
		}
		return "", err
	}
	if counterparty.IsHomeowner() {
		return "", common.ErrRecipientNotFound
	}
	return counterparty.ID, nil
}

// resolveBroadcastSet computes a group message's recipients: every aliased
// contractor on the project except the sender, plus the homeowner when a
// contractor sends.
func (s *messagingService) resolveBroadcastSet(projectID, senderID, ownerID string, senderIsOwner bool) ([]string, error) {
	participants, err := s.aliases.ListParticipants(projectID)
	if err != nil {
		return nil, err
	}

	var recipients []string
	for _, p := range participants {
		if p.ContractorID == senderID {
			continue
		}
		recipients = append(recipients, p.ContractorID)
	}
	if !senderIsOwner && ownerID != "" {
		recipients = append(recipients, ownerID)
	}
	return recipients, nil
}

// GetMessages returns the thread visible to viewerID as display-ready
// messages in chronological order. Pure read, safe to call repeatedly.
func (s *messagingService) GetMessages(projectID, viewerID string) ([]*domain.FormattedMessage, error) {
	msgs, err := s.messages.QueryMessages(projectID, viewerID)
	if err != nil {
		return nil, err
	}

	aliasMap, err := s.aliases.AliasMap(projectID)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.projects.OwnerID(projectID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	attachments, err := s.messages.AttachmentsByMessages(ids)
	if err != nil {
		return nil, err
	}

	formatted := make([]*domain.FormattedMessage, len(msgs))
	for i, m := range msgs {
		formatted[i] = s.format(m, attachments[m.ID], aliasMap, ownerID, viewerID)
	}
	return formatted, nil
}

// SubscribeToMessages wraps the adapter subscription with a bounded
// recently-seen-id filter so at-least-once delivery never produces duplicate
// entries in an open thread. The dedup set is private to this subscription
// and cleared on unsubscribe. Only participants may subscribe: the project
// owner or a contractor with an alias on the project, mirroring the
// visibility rule of GetMessages.
func (s *messagingService) SubscribeToMessages(projectID, viewerID string, callback func(*domain.FormattedMessage)) (func(), error) {
	ownerID, err := s.projects.OwnerID(projectID)
	if err != nil {
		return nil, err
	}

	if viewerID != "" && viewerID != ownerID {
		aliasMap, err := s.aliases.AliasMap(projectID)
		if err != nil {
			return nil, err
		}
		if _, ok := aliasMap[viewerID]; !ok {
			return nil, fmt.Errorf("%w: not a participant on project %s", common.ErrForbidden, projectID)
		}
	}

	seen := newSeenSet(seenSetCapacity)

	unsubscribe := s.messages.Subscribe(projectID, viewerID, func(msg *domain.Message) {
		if !seen.Add(msg.ID) {
			return
		}

		aliasMap, err := s.aliases.AliasMap(projectID)
		if err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("project_id", projectID).
				Msg("alias lookup failed while formatting live message")
			aliasMap = map[string]string{}
		}
		attachments, err := s.messages.AttachmentsByMessages([]string{msg.ID})
		if err != nil {
			attachments = map[string][]*domain.MessageAttachment{}
		}

		callback(s.format(msg, attachments[msg.ID], aliasMap, ownerID, viewerID))
	})

	return func() {
		unsubscribe()
		seen.Clear()
	}, nil
}

// MarkMessageAsRead marks a message read, returning false instead of an
// error: failing to mark read must never block message display.
func (s *messagingService) MarkMessageAsRead(messageID string) bool {
	if err := s.messages.MarkRead(messageID); err != nil {
		pkglogger.GetLogger().Warn().Err(err).Str("message_id", messageID).Msg("mark read failed")
		return false
	}
	return true
}

// UnreadCount returns the viewer's unread message count on a project
func (s *messagingService) UnreadCount(projectID, viewerID string) (int64, error) {
	if s.cache != nil {
		if count, ok := s.cache.GetUnreadCount(context.Background(), projectID, viewerID); ok {
			return count, nil
		}
	}

	count, err := s.messages.UnreadCount(projectID, viewerID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		s.cache.SetUnreadCount(context.Background(), projectID, viewerID, count)
	}
	return count, nil
}

// format builds the display projection of one message for a viewer
func (s *messagingService) format(msg *domain.Message, attachments []*domain.MessageAttachment, aliasMap map[string]string, ownerID, viewerID string) *domain.FormattedMessage {
	fm := &domain.FormattedMessage{
		ID:        msg.ID,
		ProjectID: msg.ProjectID,
		SenderID:  msg.SenderID,
		Type:      msg.MessageType,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt.Format(time.RFC3339),
		IsOwn:     viewerID != "" && msg.SenderID == viewerID,
		IsRead:    msg.ReadAt != nil,
	}

	if msg.SenderID == ownerID {
		// The homeowner is labeled, never aliased
		fm.SenderLabel = domain.SenderLabelOwner
	} else if alias, ok := aliasMap[msg.SenderID]; ok {
		fm.SenderAlias = alias
		fm.SenderLabel = "Contractor " + alias
	}

	for _, a := range attachments {
		fm.Attachments = append(fm.Attachments, domain.AttachmentView{
			ID:       a.ID,
			FileName: a.FileName,
			FileSize: a.FileSize,
			FileType: a.FileType,
			URL:      a.FileURL,
		})
	}
	return fm
}

func (s *messagingService) invalidateUnread(projectID string, recipients []string) {
	if s.cache == nil || len(recipients) == 0 {
		return
	}
	s.cache.InvalidateUnread(context.Background(), projectID, recipients...) //nolint:errcheck
}
