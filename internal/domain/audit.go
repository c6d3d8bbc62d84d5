package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	AuditSignalCreated       = "signal.created"
	AuditSignalUpdated       = "signal.updated"
	AuditSignalStatusChanged = "signal.status_changed"
	AuditSignalSent          = "signal.sent"
	AuditSignalRejected      = "signal.rejected"
	AuditTraderFollowToggled = "trader.follow_toggled"
	AuditTraderFollowPolicy  = "trader.follow_policy"
	AuditSettingsUpdated     = "settings.updated"
	AuditBroadcastCreated    = "broadcast.created"
	AuditBroadcastUpdated    = "broadcast.updated"
	AuditBroadcastDeleted    = "broadcast.deleted"
	AuditBroadcastPrepared   = "broadcast.prepared"
	AuditBroadcastSent       = "broadcast.sent"
	AuditTemplateChanged     = "template.changed"
	AuditSubscriberUpdated   = "subscriber.updated"
	AuditIntegrationChanged  = "integration.changed"
	AuditOperatorLogin       = "operator.login"
	AuditUserCreated         = "user.created"
	AuditUserUpdated         = "user.updated"
)

// AuditEntry records an administrative action or status change. A nil ActorID
// means the system (scheduled job) acted.
type AuditEntry struct {
	ID        int64                  `json:"id"`
	ActorID   *uuid.UUID             `json:"actor_id,omitempty"`
	Action    string                 `json:"action"`
	TableName string                 `json:"table_name"`
	RecordID  string                 `json:"record_id"`
	OldValues map[string]interface{} `json:"old_values,omitempty"`
	NewValues map[string]interface{} `json:"new_values,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Actor identifies who triggered an operation.
type Actor struct {
	UserID    *uuid.UUID
	IPAddress string
	UserAgent string
}

// SystemActor is the actor of scheduled jobs.
var SystemActor = Actor{}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	Action    string
	TableName string
	RecordID  string
	Limit     int
	Offset    int
}
