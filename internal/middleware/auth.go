// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Scope → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB or
// bcrypt work. Auth populates the caller identity and scopes; scope checks read
// from that context. Audit logging runs after the scope checks so only
// successfully authorized mutations are recorded as successful actions.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/auth"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/safego"
)

// AuthMiddleware validates web-user JWTs on the linking and agent endpoints.
//
// Verification is fully stateless: the user directory lives in the main
// Kita-kita app, which issues the JWT at login. This service only ever sees
// the opaque web user id carried in the claims, so there is no user table to
// consult — a valid signature and unexpired claims are the whole check.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		token = strings.TrimSpace(token)

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("auth_method", "jwt")

		c.Next()
	}
}

// OpsAuthMiddleware authenticates the admin/support surface with ops tokens.
//
// We never store the raw token — only its bcrypt hash. The 10-character
// display prefix is stored plaintext alongside the hash so we can do a fast
// indexed DB query to narrow the candidate set, then run the expensive bcrypt
// comparison only on those few rows. Without the prefix, every request would
// require scanning the entire ops_tokens table and running bcrypt on each
// row — O(n) bcrypt calls per request.
func OpsAuthMiddleware(opsTokenRepo *repositories.OpsTokenRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}

		prefix := token
		if len(token) > auth.DisplayPrefixLength {
			prefix = token[:auth.DisplayPrefixLength]
		}

		opsToken, err := authenticateOpsToken(c.Request.Context(), token, prefix, opsTokenRepo)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}

		if opsToken == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid ops token",
			})
			return
		}

		if !opsToken.Usable(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Ops token expired or revoked",
			})
			return
		}

		// Update last-used asynchronously. Last-used tracking is best-effort;
		// a synchronous write here would add DB latency to every admin request.
		// The 5-second timeout prevents leaked goroutines if the DB is
		// temporarily unreachable.
		safego.Go("ops_token.touch", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = opsTokenRepo.UpdateLastUsed(ctx, opsToken.ID)
		})

		c.Set("ops_token", opsToken)
		c.Set("ops_token_id", opsToken.ID)
		c.Set("ops_token_name", opsToken.Name)
		c.Set("auth_method", "ops_token")
		c.Set("scopes", opsToken.Scopes)

		c.Next()
	}
}

// authenticateOpsToken looks up candidate tokens by display prefix and runs
// the bcrypt comparison against each. Returns nil (no error) when nothing
// matches so callers can distinguish bad credentials from DB failures.
func authenticateOpsToken(ctx context.Context, providedToken, prefix string, opsTokenRepo *repositories.OpsTokenRepository) (*models.OpsToken, error) {
	candidates, err := opsTokenRepo.GetByDisplayPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if auth.ValidateOpsToken(providedToken, candidate.TokenHash) {
			return candidate, nil
		}
	}

	return nil, nil
}
