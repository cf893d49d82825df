// Package models - audit_log.go defines the AuditLog model for recording
// security-relevant events, capturing actor, action, affected resource,
// client IP, and arbitrary metadata.
package models

import "time"

// Audit actions emitted by the linking workflow. HTTP write operations are
// additionally audited by the middleware with method-derived actions.
const (
	AuditActionCodeIssued      = "linking.code_issued"
	AuditActionLinkCreated     = "linking.link_created"
	AuditActionLinkRefreshed   = "linking.link_refreshed"
	AuditActionLinkDeactivated = "linking.link_deactivated"
	AuditActionBurnedUnlinked  = "linking.burned_unlinked"
	AuditActionLinkRepaired    = "linking.link_repaired"
)

// AuditLog represents an audit log entry for tracking user and system actions
type AuditLog struct {
	ID           string                 `json:"id"`
	UserID       *string                `json:"user_id,omitempty"` // Nullable for system and unlinked-chat actions
	Action       string                 `json:"action"`            // e.g. "linking.link_created", "linking.code_issued"
	ResourceType *string                `json:"resource_type,omitempty"` // "linking_code", "account_link", "transaction", "ops_token"
	ResourceID   *string                `json:"resource_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"` // JSONB: additional context
	IPAddress    *string                `json:"ip_address,omitempty"` // Client IP, empty for job-originated entries
	CreatedAt    time.Time              `json:"created_at"`
}
