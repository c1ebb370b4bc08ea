package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/louisbranch/pulse/internal/platform/id"
	chatdomain "github.com/louisbranch/pulse/internal/services/chat/domain"
	notificationsdomain "github.com/louisbranch/pulse/internal/services/notifications/domain"
	"github.com/louisbranch/pulse/internal/services/realtime/presence"
	"golang.org/x/net/websocket"
)

// Dependencies wires the services behind the HTTP and socket surfaces.
type Dependencies struct {
	Notifications   *notificationsdomain.Service
	Chat            *chatdomain.Service
	Presence        *presence.Router
	Auth            Authenticator
	InternalToken   string
	Now             func() time.Time
	NewConnectionID func() (string, error)
}

type handler struct {
	notifications   *notificationsdomain.Service
	chat            *chatdomain.Service
	presence        *presence.Router
	now             func() time.Time
	newConnectionID func() (string, error)
}

// NewHandler builds the realtime router.
func NewHandler(deps Dependencies) http.Handler {
	h := &handler{
		notifications:   deps.Notifications,
		chat:            deps.Chat,
		presence:        deps.Presence,
		now:             deps.Now,
		newConnectionID: deps.NewConnectionID,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.newConnectionID == nil {
		h.newConnectionID = id.NewID
	}
	if h.presence == nil {
		h.presence = presence.NewRouter()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/up", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	authed := router.Group("/", requireUser(deps.Auth))
	authed.GET("/ws", gin.WrapH(websocket.Handler(h.serveWS)))

	authed.GET("/notifications", h.listNotifications)
	authed.GET("/notifications/unread-count", h.unreadCount)
	authed.POST("/notifications/read-all", h.markAllNotificationsRead)
	authed.POST("/notifications/:id/read", h.markNotificationRead)

	authed.GET("/chat/conversations", h.listConversations)
	authed.POST("/chat/conversations", h.openConversation)
	authed.GET("/chat/conversations/:id/messages", h.listMessages)
	authed.POST("/chat/messages", h.postMessage)

	if token := strings.TrimSpace(deps.InternalToken); token != "" {
		internal := router.Group("/internal", requireInternalToken(token))
		internal.POST("/notifications", h.createNotification)
	}
	return router
}
