// Package server hosts the realtime HTTP and WebSocket process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/louisbranch/pulse/internal/platform/i18n"
	"github.com/louisbranch/pulse/internal/platform/timeouts"
	chatdomain "github.com/louisbranch/pulse/internal/services/chat/domain"
	chatsqlite "github.com/louisbranch/pulse/internal/services/chat/storage/sqlite"
	notificationsdomain "github.com/louisbranch/pulse/internal/services/notifications/domain"
	notificationssqlite "github.com/louisbranch/pulse/internal/services/notifications/storage/sqlite"
	"github.com/louisbranch/pulse/internal/services/realtime/eventbus"
	"github.com/louisbranch/pulse/internal/services/realtime/gateway"
	"github.com/louisbranch/pulse/internal/services/realtime/presence"
	"golang.org/x/text/message"
)

// Config defines the inputs for the realtime process.
type Config struct {
	HTTPAddr            string
	NotificationsDBPath string
	ChatDBPath          string
	JWTSecret           string
	InternalToken       string
	ReadHeaderTimeout   time.Duration
	ShutdownTimeout     time.Duration
}

// Server hosts the realtime HTTP/WebSocket process.
type Server struct {
	httpAddr           string
	shutdownTimeout    time.Duration
	httpServer         *http.Server
	notificationsStore *notificationssqlite.Store
	chatStore          *chatsqlite.Store
	bus                *eventbus.Bus[notificationsdomain.Notification]
}

// NewServer opens both stores and wires the delivery pipeline:
// notification service -> bus -> gateway -> presence rooms.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	notificationsStore, err := notificationssqlite.Open(config.NotificationsDBPath)
	if err != nil {
		return nil, fmt.Errorf("open notifications store: %w", err)
	}
	chatStore, err := chatsqlite.Open(config.ChatDBPath)
	if err != nil {
		_ = notificationsStore.Close()
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	router := presence.NewRouter()
	delivery := gateway.New(router, message.NewPrinter(i18n.DefaultTag()))
	bus := eventbus.New[notificationsdomain.Notification]("notifications")
	bus.Register(delivery.DeliverNotification)

	notifications := notificationsdomain.NewService(newNotificationStoreAdapter(notificationsStore), bus, nil, nil)
	chat := chatdomain.NewService(newChatStoreAdapter(chatStore), router, delivery, nil, nil)

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: httpAddr,
		Handler: NewHandler(Dependencies{
			Notifications: notifications,
			Chat:          chat,
			Presence:      router,
			Auth:          NewJWTAuthenticator(config.JWTSecret),
			InternalToken: config.InternalToken,
		}),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:           httpAddr,
		shutdownTimeout:    config.ShutdownTimeout,
		httpServer:         httpServer,
		notificationsStore: notificationsStore,
		chatStore:          chatStore,
		bus:                bus,
	}, nil
}

// Run creates and serves a realtime server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init realtime server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve realtime: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("realtime server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("realtime server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close detaches live delivery and releases both stores.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.bus != nil {
		s.bus.Register(nil)
	}
	if s.notificationsStore != nil {
		if err := s.notificationsStore.Close(); err != nil {
			log.Printf("close notifications store: %v", err)
		}
	}
	if s.chatStore != nil {
		if err := s.chatStore.Close(); err != nil {
			log.Printf("close chat store: %v", err)
		}
	}
}
