// linking_code_repository.go implements LinkingCodeRepository, providing database
// queries for issuing, looking up, consuming, and garbage-collecting linking codes.
// Consumption is a conditional write: the used flag flips only if it is still
// false at write time, which is what makes concurrent consumption race-safe
// across the web and bot processes.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// ErrDuplicateCode is returned by Create when the generated code collides
// with an existing row. The issuing service regenerates and retries.
var ErrDuplicateCode = errors.New("linking code already exists")

// LinkingCodeRepository handles linking code database operations
type LinkingCodeRepository struct {
	db *sql.DB
}

// NewLinkingCodeRepository creates a new LinkingCodeRepository
func NewLinkingCodeRepository(db *sql.DB) *LinkingCodeRepository {
	return &LinkingCodeRepository{db: db}
}

// Create inserts a new linking code row. CreatedAt and ExpiresAt must be set
// by the caller so the TTL policy stays in one place (the service layer).
func (r *LinkingCodeRepository) Create(ctx context.Context, code *models.LinkingCode) error {
	query := `
		INSERT INTO linking_codes (code, owner_user_id, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, false)
	`

	_, err := r.db.ExecContext(ctx, query,
		code.Code,
		code.OwnerUserID,
		code.CreatedAt,
		code.ExpiresAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicateCode
	}
	return err
}

// GetByCode retrieves a linking code by its normalized code string.
// Returns (nil, nil) when no such code exists.
func (r *LinkingCodeRepository) GetByCode(ctx context.Context, code string) (*models.LinkingCode, error) {
	query := `
		SELECT code, owner_user_id, created_at, expires_at, used, used_by_external_id, used_at
		FROM linking_codes
		WHERE code = $1
	`

	lc := &models.LinkingCode{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&lc.Code,
		&lc.OwnerUserID,
		&lc.CreatedAt,
		&lc.ExpiresAt,
		&lc.Used,
		&lc.UsedByExternalID,
		&lc.UsedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return lc, nil
}

// Consume flips used to true for the given code, but only if it is still
// unused at write time. Returns true when this caller won the write; false
// means a concurrent consumer got there first (or the code never existed).
func (r *LinkingCodeRepository) Consume(ctx context.Context, code, externalChatID string, usedAt time.Time) (bool, error) {
	query := `
		UPDATE linking_codes
		SET used = true, used_by_external_id = $2, used_at = $3
		WHERE code = $1 AND used = false
	`

	result, err := r.db.ExecContext(ctx, query, code, externalChatID, usedAt)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteExpiredBefore garbage-collects codes whose expiry is older than the
// cutoff. Burned codes that never produced a link are kept so the
// reconciliation report stays complete until support has dealt with them.
func (r *LinkingCodeRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM linking_codes lc
		WHERE lc.expires_at < $1
		  AND (
			lc.used = false
			OR EXISTS (
				SELECT 1 FROM account_links al
				WHERE al.web_user_id = lc.owner_user_id
				  AND al.external_chat_id = lc.used_by_external_id
			)
		  )
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// FindBurnedWithoutLink returns used codes that have no matching account
// link: the recoverable inconsistency left behind when the link write failed
// after consumption. noted excludes codes that already have a reconciliation
// audit entry so each one is reported once.
func (r *LinkingCodeRepository) FindBurnedWithoutLink(ctx context.Context, noted bool, limit int) ([]*models.LinkingCode, error) {
	query := `
		SELECT lc.code, lc.owner_user_id, lc.created_at, lc.expires_at, lc.used, lc.used_by_external_id, lc.used_at
		FROM linking_codes lc
		WHERE lc.used = true
		  AND NOT EXISTS (
			SELECT 1 FROM account_links al
			WHERE al.web_user_id = lc.owner_user_id
			  AND al.external_chat_id = lc.used_by_external_id
		  )
	`
	if !noted {
		query += `
		  AND NOT EXISTS (
			SELECT 1 FROM audit_logs a
			WHERE a.action = 'linking.burned_unlinked' AND a.resource_id = lc.code
		  )
		`
	}
	query += ` ORDER BY lc.used_at ASC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := make([]*models.LinkingCode, 0)
	for rows.Next() {
		lc := &models.LinkingCode{}
		if err := rows.Scan(
			&lc.Code,
			&lc.OwnerUserID,
			&lc.CreatedAt,
			&lc.ExpiresAt,
			&lc.Used,
			&lc.UsedByExternalID,
			&lc.UsedAt,
		); err != nil {
			return nil, err
		}
		codes = append(codes, lc)
	}

	return codes, rows.Err()
}

// CountBurnedWithoutLink returns how many burned-without-link codes
// currently exist, for the reconciliation gauge.
func (r *LinkingCodeRepository) CountBurnedWithoutLink(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM linking_codes lc
		WHERE lc.used = true
		  AND NOT EXISTS (
			SELECT 1 FROM account_links al
			WHERE al.web_user_id = lc.owner_user_id
			  AND al.external_chat_id = lc.used_by_external_id
		  )
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
