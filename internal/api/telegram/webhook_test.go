package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/bot"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/middleware"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "webhook-secret-for-tests"

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// sendRecorder is the only Telegram API surface these tests need: every
// dispatched update ends in a SendMessage call.
type sendRecorder struct {
	sent    []string
	sendErr error
}

func (f *sendRecorder) SendMessage(_ context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *sendRecorder) GetFile(_ context.Context, fileID string) (*bot.File, error) {
	return &bot.File{FileID: fileID}, nil
}

func (f *sendRecorder) DownloadFile(_ context.Context, filePath string) ([]byte, error) {
	return nil, nil
}

type linksStub struct{}

func (linksStub) ConsumeAndLink(_ context.Context, _, _ string, _ *string) (*models.AccountLink, error) {
	return &models.AccountLink{}, nil
}

func (linksStub) ResolveLink(_ context.Context, _ string) (*models.AccountLink, error) {
	return nil, nil
}

func (linksStub) Disconnect(_ context.Context, _ string) error { return nil }

type receiptsStub struct{}

func (receiptsStub) IngestImage(_ context.Context, _ string, _ []byte, _ string) (*services.IngestResult, error) {
	return &services.IngestResult{}, nil
}

// ---------------------------------------------------------------------------
// Setup
// ---------------------------------------------------------------------------

func newWebhookRouter(secret string, limiter *middleware.WebhookLimiter) (*sendRecorder, *gin.Engine) {
	api := &sendRecorder{}
	dispatcher := bot.NewDispatcher(api, linksStub{}, receiptsStub{})
	h := NewWebhookHandler(&config.TelegramConfig{WebhookSecret: secret}, dispatcher, limiter)

	r := gin.New()
	r.POST("/telegram/webhook", h.Handle)
	return api, r
}

func postUpdate(r *gin.Engine, secret string, upd bot.Update) *httptest.ResponseRecorder {
	body, _ := json.Marshal(upd)
	req := httptest.NewRequest("POST", "/telegram/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func helpUpdate(chatID int64) bot.Update {
	return bot.Update{
		UpdateID: 1,
		Message: &bot.Message{
			MessageID: 10,
			From:      &bot.User{ID: 7, FirstName: "Ana"},
			Chat:      &bot.Chat{ID: chatID, Type: "private"},
			Text:      "/help",
		},
	}
}

// ---------------------------------------------------------------------------
// Handle
// ---------------------------------------------------------------------------

func TestHandle_DispatchesUpdate(t *testing.T) {
	api, r := newWebhookRouter(testSecret, nil)

	w := postUpdate(r, testSecret, helpUpdate(5551))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(api.sent))
	}
}

func TestHandle_RejectsWrongSecret(t *testing.T) {
	api, r := newWebhookRouter(testSecret, nil)

	w := postUpdate(r, "wrong-secret", helpUpdate(5551))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(api.sent) != 0 {
		t.Errorf("sent %d replies, want none", len(api.sent))
	}
}

func TestHandle_RejectsMissingSecretHeader(t *testing.T) {
	_, r := newWebhookRouter(testSecret, nil)

	w := postUpdate(r, "", helpUpdate(5551))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandle_UnconfiguredSecretFailsClosed(t *testing.T) {
	// An empty configured secret must never turn into an open webhook.
	_, r := newWebhookRouter("", nil)

	w := postUpdate(r, "", helpUpdate(5551))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandle_MalformedBody(t *testing.T) {
	_, r := newWebhookRouter(testSecret, nil)

	req := httptest.NewRequest("POST", "/telegram/webhook", bytes.NewReader([]byte(`{"update_id": "nope"`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", testSecret)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: body=%s", w.Code, w.Body.String())
	}
}

func TestHandle_NonMessageUpdateAccepted(t *testing.T) {
	// Edited messages, channel posts and the like are acknowledged silently.
	api, r := newWebhookRouter(testSecret, nil)

	w := postUpdate(r, testSecret, bot.Update{UpdateID: 42})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	if len(api.sent) != 0 {
		t.Errorf("sent %d replies, want none", len(api.sent))
	}
}

func TestHandle_ThrottledUpdateStill200(t *testing.T) {
	api, r := newWebhookRouter(testSecret, middleware.NewWebhookLimiter(nil, 1, 1))

	first := postUpdate(r, testSecret, helpUpdate(5551))
	second := postUpdate(r, testSecret, helpUpdate(5551))

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Errorf("status = %d/%d, want 200/200", first.Code, second.Code)
	}
	// The second update was dropped before the dispatcher saw it.
	if len(api.sent) != 1 {
		t.Errorf("sent %d replies, want 1", len(api.sent))
	}
}

func TestHandle_ThrottlePerChat(t *testing.T) {
	api, r := newWebhookRouter(testSecret, middleware.NewWebhookLimiter(nil, 1, 1))

	postUpdate(r, testSecret, helpUpdate(5551))
	w := postUpdate(r, testSecret, helpUpdate(7772))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	// A different chat has its own bucket.
	if len(api.sent) != 2 {
		t.Errorf("sent %d replies, want 2", len(api.sent))
	}
}

func TestHandle_DispatchFailureStill200(t *testing.T) {
	api, r := newWebhookRouter(testSecret, nil)
	api.sendErr = errSend

	w := postUpdate(r, testSecret, helpUpdate(5551))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: Telegram re-delivers on anything else", w.Code)
	}
}

var errSend = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "telegram send failed" }
