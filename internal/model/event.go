package model

// EventMeta carries identity/correlation fields common to every event
// variant (spec.md §3).
type EventMeta struct {
	EventID   string `json:"event_id"`
	RequestID string `json:"request_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Timestamp int64  `json:"ts"`
}

// EventType enumerates the MemoryEvent variants emitted by services.
type EventType string

const (
	EventCaptured     EventType = "captured"
	EventUpdated      EventType = "updated"
	EventDeleted      EventType = "deleted"
	EventArchived     EventType = "archived"
	EventRetrieved    EventType = "retrieved"
	EventRedacted     EventType = "redacted"
	EventSynced       EventType = "synced"
	EventConsolidated EventType = "consolidated"
	EventHookFired    EventType = "hook_fired"
	EventMcpToolCalled EventType = "mcp_tool_called"
)

// MemoryEvent is the tagged variant emitted along the capture/recall/gc
// paths and consumed by the webhook dispatcher. Data carries
// variant-specific fields as a loosely typed map so that new variants never
// require changes to dispatcher plumbing (mirrors the payload.data field in
// spec.md §6.5).
type MemoryEvent struct {
	Meta   EventMeta              `json:"meta"`
	Type   EventType              `json:"event_type"`
	Domain Domain                 `json:"domain"`
	Data   map[string]interface{} `json:"data,omitempty"`
}
