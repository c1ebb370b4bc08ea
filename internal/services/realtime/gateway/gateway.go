// Package gateway turns stored events into frames on live connections.
package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/louisbranch/pulse/internal/platform/otel"
	chatdomain "github.com/louisbranch/pulse/internal/services/chat/domain"
	notificationsdomain "github.com/louisbranch/pulse/internal/services/notifications/domain"
	"github.com/louisbranch/pulse/internal/services/notifications/render"
	"github.com/louisbranch/pulse/internal/services/realtime/presence"
	"github.com/louisbranch/pulse/internal/services/realtime/wire"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Broadcaster resolves user rooms and fans one frame out to their members.
type Broadcaster interface {
	RoomFor(userID string) string
	Broadcast(room string, frame []byte) presence.Delivery
}

// Gateway serializes events once and pushes them to every live connection
// of the addressed users.
type Gateway struct {
	rooms     Broadcaster
	localizer render.Localizer
}

// New builds a gateway. localizer renders notification summaries in live
// frames.
func New(rooms Broadcaster, localizer render.Localizer) *Gateway {
	return &Gateway{rooms: rooms, localizer: localizer}
}

// DeliverNotification pushes a notification.created frame to the owner's
// room. An owner with no live connection is not an error.
func (g *Gateway) DeliverNotification(ctx context.Context, notification notificationsdomain.Notification) error {
	if g == nil || g.rooms == nil {
		return fmt.Errorf("gateway is not configured")
	}
	_, span := otel.Tracer("gateway").Start(ctx, "gateway.DeliverNotification")
	defer span.End()

	item, err := wire.NotificationView(notification, g.localizer)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	frame, err := wire.EncodeFrame(wire.FrameNotificationCreated, "", wire.NotificationEnvelope{Notification: item})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	delivery := g.rooms.Broadcast(g.rooms.RoomFor(notification.OwnerID), frame)
	span.SetAttributes(
		attribute.Int("delivery.delivered", delivery.Delivered),
		attribute.Int("delivery.failed", delivery.Failed),
	)
	if delivery.Failed > 0 {
		log.Printf("gateway: notification %s reached %d connections, %d failed", notification.ID, delivery.Delivered, delivery.Failed)
	}
	return nil
}

// PushChatMessage pushes a chat.message frame to each recipient's room and
// returns how many connections accepted it.
func (g *Gateway) PushChatMessage(ctx context.Context, recipients []string, message chatdomain.Message) int {
	if g == nil || g.rooms == nil {
		return 0
	}
	_, span := otel.Tracer("gateway").Start(ctx, "gateway.PushChatMessage")
	defer span.End()

	frame, err := wire.EncodeFrame(wire.FrameChatMessage, "", wire.MessageEnvelope{Message: wire.MessageView(message)})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Printf("gateway: encode chat message %s: %v", message.ID, err)
		return 0
	}

	var total presence.Delivery
	for _, recipient := range lo.Uniq(recipients) {
		delivery := g.rooms.Broadcast(g.rooms.RoomFor(recipient), frame)
		total.Delivered += delivery.Delivered
		total.Failed += delivery.Failed
	}
	span.SetAttributes(
		attribute.Int("delivery.delivered", total.Delivered),
		attribute.Int("delivery.failed", total.Failed),
	)
	if total.Failed > 0 {
		log.Printf("gateway: chat message %s reached %d connections, %d failed", message.ID, total.Delivered, total.Failed)
	}
	return total.Delivered
}
