// Package presence tracks which live connections belong to which user room.
package presence

import (
	"errors"
	"strings"
	"sync"
)

const roomPrefix = "user:"

var (
	// ErrUserIDRequired indicates a connect without an owner.
	ErrUserIDRequired = errors.New("user id is required")
	// ErrConnectionIDRequired indicates a connect without a connection id.
	ErrConnectionIDRequired = errors.New("connection id is required")
	// ErrConnRequired indicates a connect without a frame sink.
	ErrConnRequired = errors.New("connection sink is required")
)

// Conn is the live sink of one connection. Enqueue must not block.
type Conn interface {
	Enqueue(frame []byte) error
}

// Delivery counts the outcome of one broadcast.
type Delivery struct {
	Delivered int
	Failed    int
}

// Router indexes rooms by id: room to connection ids, connection id to room,
// connection id to sink.
type Router struct {
	mu     sync.Mutex
	rooms  map[string]map[string]struct{}
	roomOf map[string]string
	conns  map[string]Conn
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{
		rooms:  make(map[string]map[string]struct{}),
		roomOf: make(map[string]string),
		conns:  make(map[string]Conn),
	}
}

// RoomFor returns the broadcast room of one user.
func RoomFor(userID string) string {
	return roomPrefix + strings.TrimSpace(userID)
}

// RoomFor returns the broadcast room of one user.
func (r *Router) RoomFor(userID string) string {
	return RoomFor(userID)
}

// Connect adds connectionID to the user's room. Repeating the call replaces
// the sink; a connection id moving to another user leaves its old room.
func (r *Router) Connect(userID string, connectionID string, conn Conn) error {
	userID = strings.TrimSpace(userID)
	connectionID = strings.TrimSpace(connectionID)
	if userID == "" {
		return ErrUserIDRequired
	}
	if connectionID == "" {
		return ErrConnectionIDRequired
	}
	if conn == nil {
		return ErrConnRequired
	}

	room := RoomFor(userID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if previous, ok := r.roomOf[connectionID]; ok && previous != room {
		r.removeLocked(connectionID)
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[connectionID] = struct{}{}
	r.roomOf[connectionID] = room
	r.conns[connectionID] = conn
	return nil
}

// Disconnect removes connectionID from its room. Unknown ids are ignored.
func (r *Router) Disconnect(connectionID string) {
	connectionID = strings.TrimSpace(connectionID)
	r.mu.Lock()
	r.removeLocked(connectionID)
	r.mu.Unlock()
}

// HasConnection reports whether connectionID is live and owned by userID.
func (r *Router) HasConnection(userID string, connectionID string) bool {
	room := RoomFor(userID)
	connectionID = strings.TrimSpace(connectionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomOf[connectionID] == room && connectionID != ""
}

// Broadcast enqueues frame on every connection in room. One connection's
// failure does not stop delivery to the rest.
func (r *Router) Broadcast(room string, frame []byte) Delivery {
	var delivery Delivery
	r.mu.Lock()
	defer r.mu.Unlock()
	for connectionID := range r.rooms[room] {
		conn := r.conns[connectionID]
		if conn == nil {
			delivery.Failed++
			continue
		}
		if err := conn.Enqueue(frame); err != nil {
			delivery.Failed++
			continue
		}
		delivery.Delivered++
	}
	return delivery
}

func (r *Router) removeLocked(connectionID string) {
	room, ok := r.roomOf[connectionID]
	if !ok {
		return
	}
	delete(r.roomOf, connectionID)
	delete(r.conns, connectionID)
	members := r.rooms[room]
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}
