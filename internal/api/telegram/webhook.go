// Package telegram receives bot updates pushed by the Telegram webhook.
// Authentication is the X-Telegram-Bot-Api-Secret-Token header, set when the
// webhook is registered and compared in constant time on every delivery.
// Handled updates always get a 200: Telegram re-delivers on any other status,
// and consuming a /link code twice is exactly the duplicate this service
// exists to prevent.
package telegram

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/bot"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/middleware"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
)

// WebhookHandler handles incoming Telegram updates.
type WebhookHandler struct {
	secret     string
	dispatcher *bot.Dispatcher
	limiter    *middleware.WebhookLimiter
}

// NewWebhookHandler creates the webhook handler. limiter may be nil; updates
// are then dispatched without per-chat throttling.
func NewWebhookHandler(cfg *config.TelegramConfig, dispatcher *bot.Dispatcher, limiter *middleware.WebhookLimiter) *WebhookHandler {
	return &WebhookHandler{
		secret:     cfg.WebhookSecret,
		dispatcher: dispatcher,
		limiter:    limiter,
	}
}

// @Summary      Receive Telegram update
// @Description  Receives one bot update pushed by Telegram. The X-Telegram-Bot-Api-Secret-Token header is verified with a constant-time comparison before the body is read. Per-chat rate limiting is applied after parsing; throttled updates are dropped with a 200 so Telegram does not re-deliver them. Dispatch failures are logged, not surfaced, for the same reason.
// @Tags         Telegram
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ok: true"
// @Failure      400  {object}  map[string]interface{}  "Malformed update payload"
// @Failure      401  {object}  map[string]interface{}  "Secret token mismatch"
// @Router       /api/v1/telegram/webhook [post]
// Handle processes one incoming update
// POST /api/v1/telegram/webhook
func (h *WebhookHandler) Handle(c *gin.Context) {
	header := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(header), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	var upd bot.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
		return
	}

	// Throttle per chat once the chat id is known. A dropped update still
	// returns 200; answering 429 would only make Telegram resend it.
	if h.limiter != nil && upd.Message != nil && upd.Message.Chat != nil {
		chatKey := strconv.FormatInt(upd.Message.Chat.ID, 10)
		if !h.limiter.Allow(c.Request.Context(), chatKey) {
			telemetry.TelegramUpdatesTotal.WithLabelValues("throttled").Inc()
			slog.Debug("telegram update throttled", "chat_id", chatKey, "update_id", upd.UpdateID)
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
	}

	if err := h.dispatcher.HandleUpdate(c.Request.Context(), &upd); err != nil {
		// Usually the Telegram send API being unreachable. The update is
		// considered delivered either way.
		slog.Error("telegram update dispatch failed", "update_id", upd.UpdateID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
