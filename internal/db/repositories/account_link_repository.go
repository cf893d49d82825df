// account_link_repository.go implements AccountLinkRepository, providing database
// queries for creating, resolving, refreshing, and deactivating account links.
// Links are soft-deleted only: disconnect clears the active flag and history
// rows stay behind for auditability.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// ErrActiveLinkExists is returned by Create when a partial unique index on
// active links rejects the insert: either the chat or the web user already
// holds an active link. This is the store-level backstop behind the
// service-level conflict checks.
var ErrActiveLinkExists = errors.New("an active link already exists for this identity")

// AccountLinkRepository handles account link database operations
type AccountLinkRepository struct {
	db *sql.DB
}

// NewAccountLinkRepository creates a new AccountLinkRepository
func NewAccountLinkRepository(db *sql.DB) *AccountLinkRepository {
	return &AccountLinkRepository{db: db}
}

// Create inserts a new active link. ID and LinkedAt are assigned here.
func (r *AccountLinkRepository) Create(ctx context.Context, link *models.AccountLink) error {
	link.ID = uuid.New().String()
	link.LinkedAt = time.Now()
	link.Active = true

	query := `
		INSERT INTO account_links (id, web_user_id, external_chat_id, external_display_name, linked_at, active)
		VALUES ($1, $2, $3, $4, $5, true)
	`

	_, err := r.db.ExecContext(ctx, query,
		link.ID,
		link.WebUserID,
		link.ExternalChatID,
		link.ExternalDisplayName,
		link.LinkedAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrActiveLinkExists
	}
	return err
}

// GetActiveByChatID resolves the active link for an external chat identity.
// Returns (nil, nil) when the chat is not linked — callers treat that as the
// supported unauthenticated mode, never as an error.
func (r *AccountLinkRepository) GetActiveByChatID(ctx context.Context, externalChatID string) (*models.AccountLink, error) {
	query := `
		SELECT id, web_user_id, external_chat_id, external_display_name, linked_at, active, deactivated_at
		FROM account_links
		WHERE external_chat_id = $1 AND active = true
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, externalChatID))
}

// GetActiveByUserID resolves the active link owned by a web user.
// Returns (nil, nil) when the user has no active link.
func (r *AccountLinkRepository) GetActiveByUserID(ctx context.Context, webUserID string) (*models.AccountLink, error) {
	query := `
		SELECT id, web_user_id, external_chat_id, external_display_name, linked_at, active, deactivated_at
		FROM account_links
		WHERE web_user_id = $1 AND active = true
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, webUserID))
}

// Refresh re-stamps an existing active link after the same user re-consumed
// a code from the same chat: display name and linked_at are updated in
// place rather than creating a second row.
func (r *AccountLinkRepository) Refresh(ctx context.Context, linkID string, displayName *string, linkedAt time.Time) error {
	query := `
		UPDATE account_links
		SET external_display_name = $2, linked_at = $3
		WHERE id = $1 AND active = true
	`

	result, err := r.db.ExecContext(ctx, query, linkID, displayName, linkedAt)
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

// DeactivateByChatID soft-deletes the active link for a chat. Returns the
// number of rows touched; zero is a successful no-op, not an error.
func (r *AccountLinkRepository) DeactivateByChatID(ctx context.Context, externalChatID string, at time.Time) (int64, error) {
	query := `
		UPDATE account_links
		SET active = false, deactivated_at = $2
		WHERE external_chat_id = $1 AND active = true
	`

	result, err := r.db.ExecContext(ctx, query, externalChatID, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeactivateByUserID soft-deletes the active link owned by a web user, for
// the web-side disconnect. Zero rows is a successful no-op.
func (r *AccountLinkRepository) DeactivateByUserID(ctx context.Context, webUserID string, at time.Time) (int64, error) {
	query := `
		UPDATE account_links
		SET active = false, deactivated_at = $2
		WHERE web_user_id = $1 AND active = true
	`

	result, err := r.db.ExecContext(ctx, query, webUserID, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListByUserID returns a user's link history, newest first, including
// deactivated rows.
func (r *AccountLinkRepository) ListByUserID(ctx context.Context, webUserID string, limit int) ([]*models.AccountLink, error) {
	query := `
		SELECT id, web_user_id, external_chat_id, external_display_name, linked_at, active, deactivated_at
		FROM account_links
		WHERE web_user_id = $1
		ORDER BY linked_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, webUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]*models.AccountLink, 0)
	for rows.Next() {
		link := &models.AccountLink{}
		if err := rows.Scan(
			&link.ID,
			&link.WebUserID,
			&link.ExternalChatID,
			&link.ExternalDisplayName,
			&link.LinkedAt,
			&link.Active,
			&link.DeactivatedAt,
		); err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

func (r *AccountLinkRepository) scanOne(row *sql.Row) (*models.AccountLink, error) {
	link := &models.AccountLink{}
	err := row.Scan(
		&link.ID,
		&link.WebUserID,
		&link.ExternalChatID,
		&link.ExternalDisplayName,
		&link.LinkedAt,
		&link.Active,
		&link.DeactivatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}
