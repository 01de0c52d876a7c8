// Package queue carries audit events over RabbitMQ: a buffered publisher used
// by the HTTP handlers and a consumer that appends events to a log file.
package queue

import "time"

// Audit actions.
const (
	ActionLogin         = "auth.login"
	ActionLogout        = "auth.logout"
	ActionUserCreated   = "user.created"
	ActionUserUpdated   = "user.updated"
	ActionUserDeleted   = "user.deleted"
	ActionCreditUpdated = "customer.credit_updated"
)

// AuditEvent records who did what to which record.  The actor is taken from
// the authenticated request, never from ambient state.
type AuditEvent struct {
	Action     string         `json:"action"`
	ActorID    uint64         `json:"actor_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	TargetType string         `json:"target_type,omitempty"`
	TargetID   uint64         `json:"target_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	RemoteIP   string         `json:"remote_ip,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}
