// Package models - linking_code.go defines the LinkingCode model: a short-lived,
// single-use token a web user hands to the Telegram bot to prove control of both
// identities. Models are pure data types; query logic belongs in the
// repositories layer and workflow logic in the services layer.
package models

import "time"

// LinkingCode represents one issued linking code. The code string itself is
// the primary key; it is stored in canonical normalized form.
type LinkingCode struct {
	Code             string     `json:"code"`
	OwnerUserID      string     `json:"owner_user_id"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"` // absolute; fixed at creation as CreatedAt + TTL
	Used             bool       `json:"used"`
	UsedByExternalID *string    `json:"used_by_external_id,omitempty"` // chat identity that consumed the code
	UsedAt           *time.Time `json:"used_at,omitempty"`
}

// Consumable reports whether the code can still be consumed at the given
// instant. The expiry boundary is inclusive: the code remains valid up to
// and including ExpiresAt.
func (c *LinkingCode) Consumable(now time.Time) bool {
	return !c.Used && !now.After(c.ExpiresAt)
}

// ExpiredAt reports whether the code's TTL has elapsed at the given instant.
func (c *LinkingCode) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
