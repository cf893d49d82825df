// Package admin implements the operator HTTP handlers: dashboard statistics,
// the burned-code reconciliation report and repair, support code lookup,
// audit log access, and ops token management. Every route here authenticates
// with an ops token (see internal/middleware) and checks a per-route scope;
// nothing in this package is reachable with a web user JWT. The first ops
// token is minted with the server's ops-token subcommand, since no token
// exists yet to authorize the HTTP surface.
package admin

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/auth"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
)

// OpsTokenHandlers handles ops token management endpoints
type OpsTokenHandlers struct {
	cfg          *config.Config
	opsTokenRepo *repositories.OpsTokenRepository
}

// NewOpsTokenHandlers creates a new OpsTokenHandlers instance
func NewOpsTokenHandlers(cfg *config.Config, db *sql.DB) *OpsTokenHandlers {
	return &OpsTokenHandlers{
		cfg:          cfg,
		opsTokenRepo: repositories.NewOpsTokenRepository(db),
	}
}

// CreateOpsTokenRequest represents the request to create a new ops token
type CreateOpsTokenRequest struct {
	Name      string   `json:"name" binding:"required"`
	Scopes    []string `json:"scopes" binding:"required"`
	ExpiresAt *string  `json:"expires_at"` // RFC3339 format
}

// CreateOpsTokenResponse represents the response when creating an ops token
type CreateOpsTokenResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Token         string     `json:"token"` // Only returned once during creation
	DisplayPrefix string     `json:"display_prefix"`
	Scopes        []string   `json:"scopes"`
	ExpiresAt     *time.Time `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// @Summary      List ops tokens
// @Description  Lists all ops tokens, including revoked ones. Token hashes are never returned; the display prefix identifies a token to a human.
// @Tags         Ops Tokens
// @Security     OpsToken
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "tokens: ops token list"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/tokens [get]
// ListOpsTokensHandler lists all ops tokens
// GET /api/v1/admin/tokens
func (h *OpsTokenHandlers) ListOpsTokensHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens, err := h.opsTokenRepo.ListOpsTokens(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list ops tokens"})
			return
		}

		resp := make([]gin.H, 0, len(tokens))
		for _, t := range tokens {
			var expiresAt, lastUsed, revokedAt interface{}
			if t.ExpiresAt != nil {
				expiresAt = t.ExpiresAt.Format(time.RFC3339)
			}
			if t.LastUsedAt != nil {
				lastUsed = t.LastUsedAt.Format(time.RFC3339)
			}
			if t.RevokedAt != nil {
				revokedAt = t.RevokedAt.Format(time.RFC3339)
			}
			resp = append(resp, gin.H{
				"id":             t.ID,
				"name":           t.Name,
				"display_prefix": t.DisplayPrefix,
				"scopes":         t.Scopes,
				"expires_at":     expiresAt,
				"last_used_at":   lastUsed,
				"revoked_at":     revokedAt,
				"created_at":     t.CreatedAt.Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, gin.H{"tokens": resp})
	}
}

// @Summary      Create ops token
// @Description  Creates a new ops token with the given scopes. The full token is only returned once during creation; only its bcrypt hash is stored.
// @Tags         Ops Tokens
// @Security     OpsToken
// @Accept       json
// @Produce      json
// @Param        body  body  CreateOpsTokenRequest  true  "Ops token creation request"
// @Success      201  {object}  CreateOpsTokenResponse  "Ops token created (full token returned once)"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or scopes"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/tokens [post]
// CreateOpsTokenHandler creates a new ops token
// POST /api/v1/admin/tokens
func (h *OpsTokenHandlers) CreateOpsTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOpsTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		if err := auth.ValidateScopes(req.Scopes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scopes: " + err.Error()})
			return
		}

		var expiresAt *time.Time
		if req.ExpiresAt != nil {
			parsed, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expires_at format. Use RFC3339"})
				return
			}
			expiresAt = &parsed
		}

		prefix := h.cfg.Auth.OpsTokens.Prefix
		fullToken, tokenHash, displayPrefix, err := auth.GenerateOpsToken(prefix)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate ops token"})
			return
		}

		token := &models.OpsToken{
			Name:          req.Name,
			TokenHash:     tokenHash,
			DisplayPrefix: displayPrefix,
			Scopes:        req.Scopes,
			ExpiresAt:     expiresAt,
		}

		if err := h.opsTokenRepo.CreateOpsToken(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ops token"})
			return
		}

		c.Set("audit_resource_id", token.ID)

		// Return full token (only time it's visible)
		c.JSON(http.StatusCreated, CreateOpsTokenResponse{
			ID:            token.ID,
			Name:          token.Name,
			Token:         fullToken, // IMPORTANT: Only returned once
			DisplayPrefix: displayPrefix,
			Scopes:        token.Scopes,
			ExpiresAt:     token.ExpiresAt,
			CreatedAt:     token.CreatedAt,
		})
	}
}

// @Summary      Revoke ops token
// @Description  Revokes an ops token. Revocation takes effect on the token's next request; revoked tokens stay listed for the audit trail.
// @Tags         Ops Tokens
// @Security     OpsToken
// @Produce      json
// @Param        id  path  string  true  "Ops token ID"
// @Success      200  {object}  map[string]interface{}  "Revocation confirmation"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Ops token not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/tokens/{id} [delete]
// RevokeOpsTokenHandler revokes an ops token
// DELETE /api/v1/admin/tokens/:id
func (h *OpsTokenHandlers) RevokeOpsTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenID := c.Param("id")

		if err := h.opsTokenRepo.Revoke(c.Request.Context(), tokenID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Ops token not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke ops token"})
			return
		}

		c.Set("audit_resource_id", tokenID)

		c.JSON(http.StatusOK, gin.H{"message": "Ops token revoked"})
	}
}
