// Package models - ops_token.go defines the OpsToken model for the bearer
// tokens that guard the admin/support surface. Only the bcrypt hash is stored;
// the raw token is printed exactly once by the ops-token CLI command.
package models

import "time"

// OpsToken represents an operations token for the admin API.
type OpsToken struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"` // operator-chosen label, e.g. "support-oncall"
	TokenHash     string     `json:"-"`    // bcrypt hash of the full token, never serialized
	DisplayPrefix string     `json:"display_prefix"` // first characters of the raw token, for indexed lookup
	Scopes        []string   `json:"scopes"`         // permission scopes, stored as JSONB
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"` // nil means no expiry
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// Usable reports whether the token may authenticate at the given instant.
func (t *OpsToken) Usable(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return false
	}
	return true
}
