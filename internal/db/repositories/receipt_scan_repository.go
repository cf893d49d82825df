// receipt_scan_repository.go implements ReceiptScanRepository, providing database
// queries for the per-image scan records the bot writes: duplicate detection by
// checksum, the unparseable backlog for support, and attaching a scan to the
// transaction it produced.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// ReceiptScanRepository handles receipt scan database operations
type ReceiptScanRepository struct {
	db *sql.DB
}

// NewReceiptScanRepository creates a new ReceiptScanRepository
func NewReceiptScanRepository(db *sql.DB) *ReceiptScanRepository {
	return &ReceiptScanRepository{db: db}
}

// Create inserts a new scan record. ID and CreatedAt are assigned here.
func (r *ReceiptScanRepository) Create(ctx context.Context, scan *models.ReceiptScan) error {
	scan.ID = uuid.New().String()
	scan.CreatedAt = time.Now()

	query := `
		INSERT INTO receipt_scans (id, external_chat_id, web_user_id, storage_path, checksum,
			status, sealed_text, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		scan.ID,
		scan.ExternalChatID,
		scan.WebUserID,
		scan.StoragePath,
		scan.Checksum,
		scan.Status,
		scan.SealedText,
		scan.TransactionID,
		scan.CreatedAt,
	)

	return err
}

// GetByChatAndChecksum finds an earlier scan of the same image from the same
// chat. Returns (nil, nil) when the image has not been seen before.
func (r *ReceiptScanRepository) GetByChatAndChecksum(ctx context.Context, externalChatID, checksum string) (*models.ReceiptScan, error) {
	query := `
		SELECT id, external_chat_id, web_user_id, storage_path, checksum,
			status, sealed_text, transaction_id, created_at
		FROM receipt_scans
		WHERE external_chat_id = $1 AND checksum = $2
	`

	scan := &models.ReceiptScan{}
	err := r.db.QueryRowContext(ctx, query, externalChatID, checksum).Scan(
		&scan.ID,
		&scan.ExternalChatID,
		&scan.WebUserID,
		&scan.StoragePath,
		&scan.Checksum,
		&scan.Status,
		&scan.SealedText,
		&scan.TransactionID,
		&scan.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return scan, nil
}

// GetByID finds a scan by its ID. Returns (nil, nil) when no such scan exists.
func (r *ReceiptScanRepository) GetByID(ctx context.Context, id string) (*models.ReceiptScan, error) {
	query := `
		SELECT id, external_chat_id, web_user_id, storage_path, checksum,
			status, sealed_text, transaction_id, created_at
		FROM receipt_scans
		WHERE id = $1
	`

	scan := &models.ReceiptScan{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&scan.ID,
		&scan.ExternalChatID,
		&scan.WebUserID,
		&scan.StoragePath,
		&scan.Checksum,
		&scan.Status,
		&scan.SealedText,
		&scan.TransactionID,
		&scan.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return scan, nil
}

// ListUnparseable returns the oldest scans the vision model could not read,
// for the support reprocessing queue.
func (r *ReceiptScanRepository) ListUnparseable(ctx context.Context, limit int) ([]*models.ReceiptScan, error) {
	query := `
		SELECT id, external_chat_id, web_user_id, storage_path, checksum,
			status, sealed_text, transaction_id, created_at
		FROM receipt_scans
		WHERE status = 'unparseable'
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scans := make([]*models.ReceiptScan, 0)
	for rows.Next() {
		scan := &models.ReceiptScan{}
		if err := rows.Scan(
			&scan.ID,
			&scan.ExternalChatID,
			&scan.WebUserID,
			&scan.StoragePath,
			&scan.Checksum,
			&scan.Status,
			&scan.SealedText,
			&scan.TransactionID,
			&scan.CreatedAt,
		); err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}

	return scans, rows.Err()
}

// AttachTransaction marks a scan as parsed and records the transaction it
// produced, used when support reprocesses an unparseable scan.
func (r *ReceiptScanRepository) AttachTransaction(ctx context.Context, scanID, transactionID string) error {
	query := `
		UPDATE receipt_scans
		SET status = 'parsed', sealed_text = NULL, transaction_id = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, scanID, transactionID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
