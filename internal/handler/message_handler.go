package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthbid/hearthbid-backend/internal/common"
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"github.com/hearthbid/hearthbid-backend/internal/middleware"
	"github.com/hearthbid/hearthbid-backend/internal/repository"
	"github.com/hearthbid/hearthbid-backend/internal/service"
)

// MessageHandler handles project messaging HTTP requests
type MessageHandler struct {
	messaging service.MessagingService
	aliases   service.AliasService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messaging service.MessagingService, aliases service.AliasService) *MessageHandler {
	return &MessageHandler{messaging: messaging, aliases: aliases}
}

// SendMessage handles POST /projects/:id/messages (multipart; files optional)
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	var files []repository.FileUpload
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["files"] {
			f, err := fh.Open()
			if err != nil {
				common.ErrorResponse(c, http.StatusBadRequest, "Could not read uploaded file", err)
				return
			}
			defer f.Close()
			files = append(files, repository.FileUpload{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Body:        f,
			})
		}
	}

	result, err := h.messaging.Send(c.Request.Context(), service.SendInput{
		ProjectID:      c.Param("id"),
		SenderID:       userID,
		Body:           req.Content,
		Kind:           req.Kind,
		CounterpartyID: req.CounterpartyID,
		Files:          files,
	})
	if err != nil {
		respondMessagingError(c, err)
		return
	}

	middleware.CountMessageSent(req.Kind)

	meta := &common.Meta{ProjectID: c.Param("id")}
	if !result.Delivered {
		meta.Warnings = append(meta.Warnings, "delivery may be incomplete")
	}
	for _, name := range result.FailedFiles {
		meta.Warnings = append(meta.Warnings, "attachment failed: "+name)
	}
	common.SuccessResponse(c, result.Message, meta)
}

// GetMessages handles GET /projects/:id/messages
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	messages, err := h.messaging.GetMessages(c.Param("id"), userID)
	if err != nil {
		respondMessagingError(c, err)
		return
	}

	common.SuccessResponse(c, messages, &common.Meta{
		ProjectID: c.Param("id"),
		Total:     int64(len(messages)),
	})
}

// GetParticipants handles GET /projects/:id/participants
func (h *MessageHandler) GetParticipants(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	participants, err := h.aliases.ListParticipants(c.Param("id"))
	if err != nil {
		respondMessagingError(c, err)
		return
	}

	common.SuccessResponse(c, participants, &common.Meta{ProjectID: c.Param("id")})
}

// MarkRead handles POST /messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	ok := h.messaging.MarkMessageAsRead(c.Param("id"))
	common.SuccessResponse(c, gin.H{"marked": ok}, nil)
}

// GetUnreadCount handles GET /projects/:id/messages/unread-count
func (h *MessageHandler) GetUnreadCount(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	count, err := h.messaging.UnreadCount(c.Param("id"), userID)
	if err != nil {
		respondMessagingError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"unread": count}, nil)
}

// respondMessagingError maps the messaging error taxonomy to HTTP statuses
func respondMessagingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrEmptyMessage):
		common.ErrorResponse(c, http.StatusBadRequest, "Message needs content or attachments", err)
	case errors.Is(err, common.ErrInvalidMessage):
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid message", err)
	case errors.Is(err, common.ErrRecipientNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "Recipient not found", err)
	case errors.Is(err, common.ErrProjectNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "Project not found", err)
	case errors.Is(err, common.ErrMessageNotFound), errors.Is(err, common.ErrUserNotFound), errors.Is(err, common.ErrNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "Not found", err)
	case errors.Is(err, common.ErrForbidden):
		common.ErrorResponse(c, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, common.ErrStoreUnavailable):
		common.ErrorResponse(c, http.StatusServiceUnavailable, "Message store unavailable, try again shortly", err)
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, "Internal error", err)
	}
}
