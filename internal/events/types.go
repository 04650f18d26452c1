// Package events defines the publish-subscribe event system that fans
// discovery progress and browser changes out to the API, CLI, and
// telemetry layers.
package events

import "github.com/scout-project/scout/internal/netaddr"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Query lifecycle
	EventQueryStatus  EventType = "query_status"
	EventBrowserDirty EventType = "browser_dirty"

	// Registry changes
	EventServerFound   EventType = "server_found"
	EventServerRemoved EventType = "server_removed"

	// Presence publication
	EventHeartbeatSent EventType = "heartbeat_sent"

	// NAT profile
	EventInviteAccepted EventType = "invite_accepted"
	EventInviteRejected EventType = "invite_rejected"

	// System
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Event is one bus message.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// QueryStatusPayload mirrors the progress callback: phase is one of
// start/update/ping/query/done, progress runs 0..1.
type QueryStatusPayload struct {
	Phase    string  `json:"phase"`
	Message  string  `json:"message"`
	Progress float32 `json:"progress"`
}

// ServerPayload identifies a registry record.
type ServerPayload struct {
	Address netaddr.Addr `json:"address"`
	Name    string       `json:"name"`
	Ping    uint32       `json:"ping"`
}

// HeartbeatPayload reports one presence publication cycle.
type HeartbeatPayload struct {
	Sequence uint32 `json:"sequence"`
	Masters  int    `json:"masters"`
}

// InvitePayload reports the outcome of an invite-code join.
type InvitePayload struct {
	Host    netaddr.Addr `json:"host"`
	IsLocal bool         `json:"is_local"`
}
