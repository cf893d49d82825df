// Package links implements the web-side account linking endpoints. Every
// route here requires a JWT; the caller identity is the user id carried in
// the token claims, never a request parameter. The Telegram-side half of the
// workflow (code submission, /unlink) lives in the bot dispatcher.
package links

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/linking"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/services"
)

// Handlers serves the /api/v1/linking route group.
type Handlers struct {
	svc *services.LinkingService
}

// NewHandlers creates the linking handlers.
func NewHandlers(svc *services.LinkingService) *Handlers {
	return &Handlers{svc: svc}
}

// CreateCodeResponse is the body returned when a linking code is issued. The
// code is shown to the user for manual entry in the Telegram chat; it is not
// a secret after use, but it is only returned here.
type CreateCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// @Summary      Issue linking code
// @Description  Issues a fresh single-use linking code for the authenticated user. The code is entered in the Telegram chat with /link to connect the two accounts. Issuing a new code does not invalidate earlier unexpired ones.
// @Tags         Linking
// @Security     Bearer
// @Produce      json
// @Success      201  {object}  CreateCodeResponse
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      503  {object}  map[string]interface{}  "Storage unavailable"
// @Router       /api/v1/linking/codes [post]
// CreateCode issues a new linking code for the authenticated user
// POST /api/v1/linking/codes
func (h *Handlers) CreateCode(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDVal.(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return
	}

	code, err := h.svc.IssueCode(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, linking.ErrStorageUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":  "Could not issue a code right now, please try again",
				"reason": "storage_unavailable",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue linking code"})
		return
	}

	c.Set("audit_resource_id", code.Code)

	c.JSON(http.StatusCreated, CreateCodeResponse{
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
	})
}

// @Summary      Linking status
// @Description  Returns the caller's active Telegram link, if any. The chat id is masked to its last four characters; the display name is a cached convenience from link time and may be stale.
// @Tags         Linking
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "linked: bool, link: active link details when linked"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      503  {object}  map[string]interface{}  "Storage unavailable"
// @Router       /api/v1/linking/status [get]
// Status returns the caller's active link or linked:false
// GET /api/v1/linking/status
func (h *Handlers) Status(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDVal.(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return
	}

	link, err := h.svc.StatusForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Could not check linking status right now",
			"reason": "storage_unavailable",
		})
		return
	}

	if link == nil {
		c.JSON(http.StatusOK, gin.H{"linked": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"linked": true,
		"link": gin.H{
			"external_chat_id":      maskChatID(link.ExternalChatID),
			"external_display_name": link.ExternalDisplayName,
			"linked_at":             link.LinkedAt.Format(time.RFC3339),
		},
	})
}

// maskChatID hides all but the last four characters of a chat id. The web UI
// only needs enough for the user to recognise the chat; the full id stays
// server-side.
func maskChatID(chatID string) string {
	if len(chatID) <= 4 {
		return strings.Repeat("*", len(chatID))
	}
	return strings.Repeat("*", len(chatID)-4) + chatID[len(chatID)-4:]
}

// @Summary      Disconnect Telegram link
// @Description  Deactivates the caller's active Telegram link. Succeeds as a no-op when no link exists, so the frontend can offer disconnect unconditionally.
// @Tags         Linking
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message: confirmation"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      503  {object}  map[string]interface{}  "Storage unavailable"
// @Router       /api/v1/linking/link [delete]
// Disconnect deactivates the caller's active link
// DELETE /api/v1/linking/link
func (h *Handlers) Disconnect(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDVal.(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return
	}

	if err := h.svc.DisconnectByUser(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Could not disconnect right now, please try again",
			"reason": "storage_unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Telegram link disconnected"})
}
