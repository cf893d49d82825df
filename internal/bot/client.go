package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/linking"
)

const (
	defaultAPIBaseURL = "https://api.telegram.org"
	clientTimeout     = 10 * time.Second

	// MaxFileBytes caps receipt photo downloads. Telegram photo renditions
	// stay well under this; anything larger is refused, not truncated.
	MaxFileBytes = 10 << 20
)

// Client is a minimal Telegram Bot API client. Transport failures and API
// rejections wrap linking.ErrUpstreamUnavailable so callers up the stack can
// classify them without knowing Telegram specifics.
type Client struct {
	token   string
	apiBase string
	httpc   *http.Client
}

// NewClient creates a client from config. api_base_url is overridable for
// tests and for the local Bot API server.
func NewClient(cfg *config.TelegramConfig) *Client {
	base := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultAPIBaseURL
	}
	return &Client{
		token:   cfg.BotToken,
		apiBase: base,
		httpc:   &http.Client{Timeout: clientTimeout},
	}
}

// apiResponse is Telegram's envelope: result is populated when ok is true,
// description when it is false.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

// call posts one API method and decodes the result envelope into out (out may
// be nil when the caller only needs success/failure).
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: failed to marshal payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/bot"+c.token+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: failed to create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w: %v", method, linking.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram %s: %w: undecodable response (HTTP %d)", method, linking.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s: %w: HTTP %d: %s", method, linking.ErrUpstreamUnavailable, resp.StatusCode, envelope.Description)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram %s: failed to decode result: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends an HTML-formatted text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
}

// SetWebhook registers the webhook URL with Telegram. The secret comes back
// as X-Telegram-Bot-Api-Secret-Token on every delivery; only message updates
// are subscribed since the dispatcher handles nothing else.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	return c.call(ctx, "setWebhook", map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message"},
	}, nil)
}

// GetFile resolves a file_id into a download path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var file File
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &file); err != nil {
		return nil, err
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile: %w: empty file_path for %s", linking.ErrUpstreamUnavailable, fileID)
	}
	return &file, nil
}

// DownloadFile fetches file content by the path GetFile returned. Downloads
// larger than MaxFileBytes fail rather than truncate.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	url := c.apiBase + "/file/bot" + c.token + "/" + filePath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram download: failed to create request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w: %v", linking.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram download: %w: HTTP %d", linking.ErrUpstreamUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w: %v", linking.ErrUpstreamUnavailable, err)
	}
	if len(data) > MaxFileBytes {
		return nil, fmt.Errorf("telegram download: file exceeds %d bytes", MaxFileBytes)
	}
	return data, nil
}
