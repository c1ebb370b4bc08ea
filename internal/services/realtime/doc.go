// Package realtime hosts live delivery for notifications and chat.
//
// The event bus carries stored notifications to the delivery gateway, which
// resolves each owner's presence room and enqueues one serialized frame per
// live connection. Persistence stays the source of truth; clients reconcile
// missed events through the paginated backlog.
package realtime
