// Package models - account_link.go defines the AccountLink model: the durable
// association between a web-application account and an external chat identity,
// created by consuming a linking code and soft-deleted on disconnect.
package models

import "time"

// AccountLink represents one linking of a web user to an external chat.
// ExternalChatID is the natural lookup key; at most one active link may
// exist per chat and per web user (enforced by partial unique indexes).
// Deactivated rows are kept as history.
type AccountLink struct {
	ID                  string     `json:"id"`
	WebUserID           string     `json:"web_user_id"`
	ExternalChatID      string     `json:"external_chat_id"`
	ExternalDisplayName *string    `json:"external_display_name,omitempty"` // cached for display only, never authoritative
	LinkedAt            time.Time  `json:"linked_at"`
	Active              bool       `json:"active"`
	DeactivatedAt       *time.Time `json:"deactivated_at,omitempty"`
}
