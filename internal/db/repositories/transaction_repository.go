// transaction_repository.go implements TransactionRepository, providing database
// queries for recording transactions from the receipt flow and aggregating a
// user's recent activity for the agent context builder.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// TransactionRepository handles transaction database operations
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction. ID and CreatedAt are assigned here.
func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	txn.ID = uuid.New().String()
	txn.CreatedAt = time.Now()

	query := `
		INSERT INTO transactions (id, user_id, txn_date, amount_minor, currency, direction,
			merchant, category, description, source, receipt_path, receipt_checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		txn.ID,
		txn.UserID,
		txn.TxnDate,
		txn.AmountMinor,
		txn.Currency,
		txn.Direction,
		txn.Merchant,
		txn.Category,
		txn.Description,
		txn.Source,
		txn.ReceiptPath,
		txn.ReceiptChecksum,
		txn.CreatedAt,
	)

	return err
}

// ListByUserSince returns a user's transactions on or after the given date,
// newest first.
func (r *TransactionRepository) ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, txn_date, amount_minor, currency, direction,
			merchant, category, description, source, receipt_path, receipt_checksum, created_at
		FROM transactions
		WHERE user_id = $1 AND txn_date >= $2
		ORDER BY txn_date DESC, created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]*models.Transaction, 0)
	for rows.Next() {
		txn := &models.Transaction{}
		if err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.TxnDate,
			&txn.AmountMinor,
			&txn.Currency,
			&txn.Direction,
			&txn.Merchant,
			&txn.Category,
			&txn.Description,
			&txn.Source,
			&txn.ReceiptPath,
			&txn.ReceiptChecksum,
			&txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

// SummarizeByUser aggregates a user's transactions since the given date into
// the compact summary the agent chat prompt is built from. The currency of
// the summary is the most frequent currency in the window; mixed-currency
// totals are not converted.
func (r *TransactionRepository) SummarizeByUser(ctx context.Context, userID string, since time.Time) (*models.TransactionSummary, error) {
	summary := &models.TransactionSummary{UserID: userID, Since: since}

	query := `
		SELECT
			COALESCE(SUM(amount_minor) FILTER (WHERE direction = 'income'), 0),
			COALESCE(SUM(amount_minor) FILTER (WHERE direction = 'expense'), 0),
			COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND txn_date >= $2
	`

	err := r.db.QueryRowContext(ctx, query, userID, since).Scan(
		&summary.IncomeMinor,
		&summary.ExpenseMinor,
		&summary.Count,
	)
	if err != nil {
		return nil, err
	}

	// Dominant currency and top spending category are optional extras;
	// missing rows just leave the zero values in place.
	_ = r.db.QueryRowContext(ctx, `
		SELECT currency FROM transactions
		WHERE user_id = $1 AND txn_date >= $2
		GROUP BY currency ORDER BY COUNT(*) DESC LIMIT 1
	`, userID, since).Scan(&summary.Currency)

	var topCategory string
	catErr := r.db.QueryRowContext(ctx, `
		SELECT category FROM transactions
		WHERE user_id = $1 AND txn_date >= $2 AND direction = 'expense' AND category IS NOT NULL
		GROUP BY category ORDER BY SUM(amount_minor) DESC LIMIT 1
	`, userID, since).Scan(&topCategory)
	if catErr == nil {
		summary.TopCategory = &topCategory
	}

	return summary, nil
}
