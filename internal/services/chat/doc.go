// Package chat implements direct conversations between two users.
//
// Messages are persisted before any live fan-out, so a send over an open
// socket and a send over REST leave the same stored row behind.
package chat
