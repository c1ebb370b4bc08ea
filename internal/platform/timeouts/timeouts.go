// Package timeouts defines shared timeout constants for the HTTP and
// WebSocket surfaces.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// WebSocketWrite caps one frame write to a live connection. A peer that
// cannot accept a frame within this window is treated as gone.
const WebSocketWrite = 10 * time.Second

// WebSocketIdle closes a live connection that sends nothing for this long.
const WebSocketIdle = 2 * time.Minute
