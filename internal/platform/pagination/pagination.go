// Package pagination provides page size clamping and keyset cursor tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrInvalidCursor indicates a cursor token that cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Cursor is a position in a (created_at DESC, id DESC) ordered sequence.
// The next page holds rows strictly older than the cursor.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type cursorToken struct {
	CreatedAt int64  `json:"t"`
	ID        string `json:"i"`
}

// EncodeCursor returns the opaque token for one cursor position.
func EncodeCursor(cursor Cursor) string {
	payload, _ := json.Marshal(cursorToken{
		CreatedAt: cursor.CreatedAt.UTC().UnixMilli(),
		ID:        cursor.ID,
	})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCursor parses one opaque token. An empty token returns nil.
func DecodeCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var decoded cursorToken
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, ErrInvalidCursor
	}
	id := strings.TrimSpace(decoded.ID)
	if id == "" || decoded.CreatedAt <= 0 {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: time.UnixMilli(decoded.CreatedAt).UTC(), ID: id}, nil
}
