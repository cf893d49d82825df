// Package models - transaction.go defines the Transaction model for financial
// entries written by the bot's receipt flow and read by the agent context
// builder. Amounts are stored in integer minor units (centavos) to avoid
// floating-point drift.
package models

import "time"

// Transaction directions.
const (
	DirectionIncome   = "income"
	DirectionExpense  = "expense"
	DirectionTransfer = "transfer"
)

// Transaction sources.
const (
	SourceTelegramReceipt = "telegram_receipt"
	SourceManual          = "manual"
)

// Transaction represents a single financial entry for a web user.
type Transaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TxnDate         time.Time `json:"txn_date"`
	AmountMinor     int64     `json:"amount_minor"` // minor units of Currency
	Currency        string    `json:"currency"`
	Direction       string    `json:"direction"`
	Merchant        *string   `json:"merchant,omitempty"`
	Category        *string   `json:"category,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Source          string    `json:"source"`
	ReceiptPath     *string   `json:"receipt_path,omitempty"` // archive path of the source image, if any
	ReceiptChecksum *string   `json:"receipt_checksum,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValidDirection reports whether d is one of the known transaction directions.
func ValidDirection(d string) bool {
	return d == DirectionIncome || d == DirectionExpense || d == DirectionTransfer
}

// TransactionSummary is an aggregate over a user's recent transactions,
// used to build the financial context block for agent chats.
type TransactionSummary struct {
	UserID       string    `json:"user_id"`
	Since        time.Time `json:"since"`
	IncomeMinor  int64     `json:"income_minor"`
	ExpenseMinor int64     `json:"expense_minor"`
	Currency     string    `json:"currency"`
	Count        int64     `json:"count"`
	TopCategory  *string   `json:"top_category,omitempty"`
}
