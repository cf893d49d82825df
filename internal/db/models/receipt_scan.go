// Package models - receipt_scan.go defines the ReceiptScan model: one row per
// receipt photo the bot processed, whether or not the vision model could read
// it and whether or not the chat was linked at the time.
package models

import "time"

// Receipt scan outcomes.
const (
	ScanStatusParsed      = "parsed"
	ScanStatusUnparseable = "unparseable"
)

// ReceiptScan records one processed receipt image. WebUserID is nil when the
// chat was unlinked at scan time (degraded mode). SealedText holds the
// AES-GCM-sealed raw model output for unparseable scans when a data key is
// configured; it is never stored in the clear.
type ReceiptScan struct {
	ID             string    `json:"id"`
	ExternalChatID string    `json:"external_chat_id"`
	WebUserID      *string   `json:"web_user_id,omitempty"`
	StoragePath    string    `json:"storage_path"`
	Checksum       string    `json:"checksum"`
	Status         string    `json:"status"`
	SealedText     *string   `json:"-"` // Never expose in JSON
	TransactionID  *string   `json:"transaction_id,omitempty"` // set when the scan produced a saved transaction
	CreatedAt      time.Time `json:"created_at"`
}
