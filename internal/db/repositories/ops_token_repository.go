// ops_token_repository.go implements OpsTokenRepository, providing database
// queries for ops token lookup by display prefix, creation, listing,
// revocation, and last-used timestamp updates.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
)

// OpsTokenRepository handles ops token database operations
type OpsTokenRepository struct {
	db *sql.DB
}

// NewOpsTokenRepository creates a new OpsTokenRepository
func NewOpsTokenRepository(db *sql.DB) *OpsTokenRepository {
	return &OpsTokenRepository{db: db}
}

// CreateOpsToken creates a new ops token record
func (r *OpsTokenRepository) CreateOpsToken(ctx context.Context, token *models.OpsToken) error {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()

	scopesJSON, err := json.Marshal(token.Scopes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ops_tokens (id, name, token_hash, display_prefix, scopes, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		token.ID,
		token.Name,
		token.TokenHash,
		token.DisplayPrefix,
		scopesJSON,
		token.CreatedAt,
		token.ExpiresAt,
	)

	return err
}

// GetByDisplayPrefix retrieves candidate tokens sharing a display prefix.
// The caller compares the presented token against each candidate's bcrypt
// hash; prefixes only narrow the search so authentication stays indexed.
func (r *OpsTokenRepository) GetByDisplayPrefix(ctx context.Context, displayPrefix string) ([]*models.OpsToken, error) {
	query := `
		SELECT id, name, token_hash, display_prefix, scopes, created_at, expires_at, last_used_at, revoked_at
		FROM ops_tokens
		WHERE display_prefix = $1 AND revoked_at IS NULL
	`

	rows, err := r.db.QueryContext(ctx, query, displayPrefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*models.OpsToken, 0)
	for rows.Next() {
		token, err := scanOpsToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

// ListOpsTokens returns all tokens, newest first, including revoked ones so
// the admin surface can show the full history.
func (r *OpsTokenRepository) ListOpsTokens(ctx context.Context) ([]*models.OpsToken, error) {
	query := `
		SELECT id, name, token_hash, display_prefix, scopes, created_at, expires_at, last_used_at, revoked_at
		FROM ops_tokens
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*models.OpsToken, 0)
	for rows.Next() {
		token, err := scanOpsToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

func scanOpsToken(rows *sql.Rows) (*models.OpsToken, error) {
	token := &models.OpsToken{}
	var scopesJSON []byte
	if err := rows.Scan(
		&token.ID,
		&token.Name,
		&token.TokenHash,
		&token.DisplayPrefix,
		&scopesJSON,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.LastUsedAt,
		&token.RevokedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopesJSON, &token.Scopes); err != nil {
		return nil, err
	}
	return token, nil
}

// UpdateLastUsed records when a token last authenticated a request
func (r *OpsTokenRepository) UpdateLastUsed(ctx context.Context, tokenID string) error {
	query := `UPDATE ops_tokens SET last_used_at = $2 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, tokenID, time.Now())
	return err
}

// Revoke marks a token as revoked; revoked tokens never authenticate again
func (r *OpsTokenRepository) Revoke(ctx context.Context, tokenID string) error {
	query := `UPDATE ops_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, tokenID, time.Now())
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
