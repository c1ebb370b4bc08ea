package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/pulse/internal/platform/errors"
	"github.com/louisbranch/pulse/internal/platform/i18n"
	"github.com/louisbranch/pulse/internal/platform/requestctx"
	"github.com/louisbranch/pulse/internal/platform/timeouts"
	"github.com/louisbranch/pulse/internal/services/realtime/wire"
	"golang.org/x/net/websocket"
	"golang.org/x/text/language"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

var errConnClosed = errors.New("connection closed")

// wsConn owns one socket's outbound frames. A single writer goroutine drains
// them so pushes and replies never interleave on the wire. Enqueue never
// drops a frame; a connection is only given up on when one write misses
// timeouts.WebSocketWrite.
type wsConn struct {
	id     string
	userID string
	tag    language.Tag
	ws     *websocket.Conn

	mu      sync.Mutex
	pending [][]byte
	closed  bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(id string, userID string, tag language.Tag, ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:     id,
		userID: userID,
		tag:    tag,
		ws:     ws,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue implements presence.Conn. Frames keep their enqueue order.
func (c *wsConn) Enqueue(frame []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errConnClosed
	}
	c.pending = append(c.pending, frame)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *wsConn) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *wsConn) takePending() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := c.pending
	c.pending = nil
	return frames
}

func (c *wsConn) writeLoop() {
	defer func() {
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			c.flush()
			return
		case <-c.wake:
			for _, frame := range c.takePending() {
				_ = c.ws.SetWriteDeadline(time.Now().Add(timeouts.WebSocketWrite))
				if err := websocket.Message.Send(c.ws, string(frame)); err != nil {
					log.Printf("realtime: closing conn=%s user=%s after write failure: %v", c.id, c.userID, err)
					c.shutdown()
					return
				}
			}
		}
	}
}

// flush writes whatever is still pending under one shared deadline so error
// frames sent just before a close reach the client.
func (c *wsConn) flush() {
	_ = c.ws.SetWriteDeadline(time.Now().Add(timeouts.WebSocketWrite))
	for _, frame := range c.takePending() {
		if err := websocket.Message.Send(c.ws, string(frame)); err != nil {
			return
		}
	}
}

func (c *wsConn) reply(frameType string, requestID string, payload any) {
	frame, err := wire.EncodeFrame(frameType, requestID, payload)
	if err != nil {
		log.Printf("realtime: encode %s frame: %v", frameType, err)
		return
	}
	_ = c.Enqueue(frame)
}

func (c *wsConn) replyError(requestID string, err *apperrors.Error) {
	c.reply(wire.FrameError, requestID, wire.ErrorEnvelope{Error: errorBody(c.tag, err)})
}

func (h *handler) serveWS(ws *websocket.Conn) {
	request := ws.Request()
	ctx := request.Context()
	userID := requestctx.UserIDFromContext(ctx)
	if userID == "" {
		_ = ws.Close()
		return
	}
	connectionID, err := h.newConnectionID()
	if err != nil {
		log.Printf("realtime: connection id: %v", err)
		_ = ws.Close()
		return
	}
	ws.MaxPayloadBytes = 2 * maxFramePayloadBytes

	conn := newWSConn(connectionID, userID, i18n.ResolveTag(request), ws)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		conn.writeLoop()
	}()
	if err := h.presence.Connect(userID, connectionID, conn); err != nil {
		log.Printf("realtime: register conn=%s user=%s: %v", connectionID, userID, err)
		conn.shutdown()
		<-writerDone
		return
	}
	defer func() {
		h.presence.Disconnect(connectionID)
		conn.shutdown()
		<-writerDone
	}()

	conn.reply(wire.FrameSessionReady, "", wire.SessionReadyPayload{
		ConnectionID: connectionID,
		UserID:       userID,
		ServerTime:   wire.Timestamp(h.now()),
	})

	ctx = requestctx.WithConnectionID(ctx, connectionID)
	h.readLoop(ctx, conn)
}

func (h *handler) readLoop(ctx context.Context, conn *wsConn) {
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		select {
		case <-conn.done:
			return
		default:
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(timeouts.WebSocketIdle))

		var data []byte
		if err := websocket.Message.Receive(conn.ws, &data); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				decodeErrors++
				conn.replyError("", apperrors.New(apperrors.CodeInvalidArgument, "payload too large"))
				if decodeErrors >= maxDecodeErrorsPerConn {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.Printf("realtime: read conn=%s: %v", conn.id, err)
			}
			return
		}

		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			decodeErrors++
			conn.replyError("", apperrors.New(apperrors.CodeInvalidArgument, "invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			conn.replyError(frame.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "payload too large"))
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			conn.replyError(frame.RequestID, apperrors.New(apperrors.CodeResourceExhausted, "rate limit exceeded"))
			return
		}

		switch strings.TrimSpace(frame.Type) {
		case wire.FrameChatSend:
			h.handleChatSendFrame(ctx, conn, frame)
		default:
			conn.replyError(frame.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "unsupported frame type"))
		}
	}
}

type chatSendFramePayload struct {
	ConversationID  string          `json:"conversation_id"`
	ClientMessageID string          `json:"client_message_id,omitempty"`
	Content         *string         `json:"content,omitempty"`
	Kind            string          `json:"kind,omitempty"`
	Attachments     []attachmentDTO `json:"attachments,omitempty"`
}

func (h *handler) handleChatSendFrame(ctx context.Context, conn *wsConn, frame wire.Frame) {
	var payload chatSendFramePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		conn.replyError(frame.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "invalid chat.send payload"))
		return
	}
	result, err := h.sendChat(ctx, conn.userID, sendRequest{
		ConversationID:  payload.ConversationID,
		ClientMessageID: payload.ClientMessageID,
		Content:         payload.Content,
		Kind:            payload.Kind,
		Attachments:     payload.Attachments,
	})
	if err != nil {
		apiErr := toAPIError(err)
		if apiErr.Code == apperrors.CodeInternal {
			log.Printf("realtime: chat.send conn=%s: %v", conn.id, err)
		}
		conn.replyError(frame.RequestID, apiErr)
		return
	}
	conn.reply(wire.FrameChatAck, frame.RequestID, wire.AckEnvelope{Result: wire.AckResult{
		Status:    "ok",
		Message:   wire.MessageView(result.Message),
		Path:      string(result.Path),
		Duplicate: result.Duplicate,
	}})
}
