// Package audit implements the append-only audit log: one row per read,
// write, finalize, or view of clinical data, plus the retention-driven prune
// job. Rows are never updated.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies what the actor did to the entity.
type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionView     Action = "view"
	ActionFinalize Action = "finalize"
	ActionAmend    Action = "amend"
	ActionReview   Action = "review"
	ActionSend     Action = "send"
)

// Source identifies where the action originated.
type Source string

const (
	SourceAPI         Source = "api"
	SourceSystem      Source = "system"
	SourceIntegration Source = "integration"
)

// Log maps to the audit_log table.
type Log struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	UserID     *uuid.UUID             `db:"user_id" json:"user_id,omitempty"`
	Action     Action                 `db:"action" json:"action"`
	EntityType string                 `db:"entity_type" json:"entity_type"`
	EntityID   string                 `db:"entity_id" json:"entity_id"`
	IP         *string                `db:"ip" json:"ip,omitempty"`
	Source     Source                 `db:"source" json:"source"`
	Timestamp  time.Time              `db:"timestamp" json:"timestamp"`
	Metadata   map[string]interface{} `db:"metadata" json:"metadata,omitempty"`
}

// SearchFilter narrows an admin audit query.
type SearchFilter struct {
	UserID     *uuid.UUID
	Action     Action
	EntityType string
	EntityID   string
	From       *time.Time
	To         *time.Time
}
