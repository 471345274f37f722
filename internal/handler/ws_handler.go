package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hearthbid/hearthbid-backend/internal/common"
	"github.com/hearthbid/hearthbid-backend/internal/domain"
	"github.com/hearthbid/hearthbid-backend/internal/service"
	"github.com/hearthbid/hearthbid-backend/internal/ws"
	pkgjwt "github.com/hearthbid/hearthbid-backend/pkg/jwt"
	pkglogger "github.com/hearthbid/hearthbid-backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the CORS layer in front
	},
}

// WSHandler upgrades thread-watching connections and bridges them to the
// messaging service's live subscription
type WSHandler struct {
	messaging  service.MessagingService
	jwtManager *pkgjwt.Manager
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(messaging service.MessagingService, jwtManager *pkgjwt.Manager) *WSHandler {
	return &WSHandler{messaging: messaging, jwtManager: jwtManager}
}

// WatchProject handles GET /ws/projects/:id?token=...
// Browsers cannot set headers on WebSocket dials, so the token rides the query.
func (h *WSHandler) WatchProject(c *gin.Context) {
	token := c.Query("token")
	claims, err := h.jwtManager.VerifyToken(token)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "Invalid token", err)
		return
	}

	projectID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	var unsubscribe func()
	client := ws.NewClient(conn, func() {
		if unsubscribe != nil {
			unsubscribe()
		}
	})

	unsubscribe, err = h.messaging.SubscribeToMessages(projectID, claims.UserID, func(fm *domain.FormattedMessage) {
		data, err := json.Marshal(fm)
		if err != nil {
			return
		}
		client.Push(data)
	})
	if err != nil {
		code := websocket.CloseInternalServerErr
		if errors.Is(err, common.ErrForbidden) {
			code = websocket.ClosePolicyViolation
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, "")) //nolint:errcheck
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
