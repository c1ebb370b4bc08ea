package wire

import (
	"encoding/json"
	"fmt"
)

// Frame types exchanged on the live socket.
const (
	FrameSessionReady        = "session.ready"
	FrameNotificationCreated = "notification.created"
	FrameChatMessage         = "chat.message"
	FrameChatSend            = "chat.send"
	FrameChatAck             = "chat.ack"
	FrameError               = "error"
)

// Frame is one socket envelope in either direction.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// SessionReadyPayload greets a freshly registered connection.
type SessionReadyPayload struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	ServerTime   string `json:"server_time"`
}

// NotificationEnvelope wraps a pushed notification.
type NotificationEnvelope struct {
	Notification NotificationItem `json:"notification"`
}

// MessageEnvelope wraps a pushed chat message.
type MessageEnvelope struct {
	Message MessageItem `json:"message"`
}

// AckEnvelope answers a chat.send frame.
type AckEnvelope struct {
	Result AckResult `json:"result"`
}

// AckResult reports the stored message and the path the send took.
type AckResult struct {
	Status    string      `json:"status"`
	Message   MessageItem `json:"message"`
	Path      string      `json:"path"`
	Duplicate bool        `json:"duplicate"`
}

// ErrorEnvelope carries one socket error.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the error shape shared by REST and socket responses.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// EncodeFrame serializes one frame with payload marshaled in place.
func EncodeFrame(frameType string, requestID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", frameType, err)
	}
	data, err := json.Marshal(Frame{Type: frameType, RequestID: requestID, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", frameType, err)
	}
	return data, nil
}
