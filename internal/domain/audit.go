package domain

import "time"

type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionAllocate Action = "allocate"
	ActionRelease  Action = "release"
	ActionReserve  Action = "reserve"
)

type EntityType string

const (
	EntitySubnet  EntityType = "subnet"
	EntityAddress EntityType = "address"
	EntityUser    EntityType = "user"
)

// AuditEntry is append only. Entries weakly reference their entity: the
// entity may be deleted but the entry survives.
type AuditEntry struct {
	AuditID    int64          `json:"audit_id"`
	UserID     int64          `json:"user_id"`
	Action     Action         `json:"action"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   int64          `json:"entity_id"`
	OldValues  map[string]any `json:"old_values,omitempty"`
	NewValues  map[string]any `json:"new_values,omitempty"`
	RemoteAddr string         `json:"remote_addr,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type AuditQuery struct {
	UserID     int64      `schema:"user_id"`
	Action     Action     `schema:"action"`
	EntityType EntityType `schema:"entity_type"`
	EntityID   int64      `schema:"entity_id"`
	Since      time.Time  `schema:"since"`
	Until      time.Time  `schema:"until"`
	Skip       uint64     `schema:"skip"`
	Limit      uint64     `schema:"limit"`
}
