// Package llm is the glue to the vision/chat model behind the bot. GeminiClient
// speaks the generateContent REST shape used by Google AI Studio keys and
// compatible proxies; ParseReceipt turns raw model text into the tagged receipt
// result the ingestion flow stores; the persona table defines the closed set of
// financial-assistant characters the agents API exposes.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
)

// Client is the interface the receipt and agent flows depend on. Both calls
// return the raw model text; interpreting it is the caller's problem.
type Client interface {
	// Complete sends a text prompt and blocks until the full response is available.
	Complete(ctx context.Context, prompt string) (string, error)
	// AnalyzeImage sends a prompt plus one inline image.
	AnalyzeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com"
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 2
	retryBackoff       = 500 * time.Millisecond
)

// GeminiClient posts to a Gemini-style generateContent endpoint.
type GeminiClient struct {
	baseURL     string
	model       string
	apiKey      string
	maxAttempts int
	httpClient  *http.Client
}

// NewGeminiClient creates a client from config. Zero-value timeout and
// attempt settings fall back to defaults.
func NewGeminiClient(cfg *config.LLMConfig) *GeminiClient {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &GeminiClient{
		baseURL:     baseURL,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		maxAttempts: attempts,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// ---- wire format ------------------------------------------------------------

type generateRequest struct {
	Contents []wireContent `json:"contents"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *wireInlineData `json:"inline_data,omitempty"`
}

type wireInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateResponse struct {
	Candidates []struct {
		Content      wireContent `json:"content"`
		FinishReason string      `json:"finishReason"`
	} `json:"candidates"`
}

// text concatenates the text parts of the first candidate.
func (r *generateResponse) text() (string, error) {
	if len(r.Candidates) == 0 {
		return "", errors.New("model returned no candidates")
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", errors.New("model returned an empty candidate")
	}
	return sb.String(), nil
}

// APIError is returned when the model endpoint answers with a non-200 status.
type APIError struct {
	StatusCode int
	Status     string // e.g. "RESOURCE_EXHAUSTED"
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ---- requests ---------------------------------------------------------------

// Complete sends a text-only prompt.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []wirePart{{Text: prompt}})
}

// AnalyzeImage sends a prompt plus one inline image.
func (c *GeminiClient) AnalyzeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	return c.generate(ctx, []wirePart{
		{Text: prompt},
		{InlineData: &wireInlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(image),
		}},
	})
}

// generate runs the request with bounded retries on transient failures
// (429, 5xx, transport errors). 4xx responses are never retried.
func (c *GeminiClient) generate(ctx context.Context, parts []wirePart) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []wireContent{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, err := c.doOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", lastErr
		}
		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return "", lastErr
			case <-time.After(retryBackoff):
			}
		}
	}
	return "", lastErr
}

func (c *GeminiClient) doOnce(ctx context.Context, body []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call model endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	return decoded.text()
}

// readAPIError parses the standard Google API error body
// {"error":{"code":...,"message":"...","status":"..."}}; anything else is
// kept verbatim as the message.
func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wireErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireErr) == nil && wireErr.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     wireErr.Error.Status,
			Message:    wireErr.Error.Message,
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
