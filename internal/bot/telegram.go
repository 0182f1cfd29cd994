// Package bot implements the Telegram side of the relay: a thin Bot
// API client, message validation, and the ticket submission flow.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultAPIBase is the Telegram Bot API endpoint.
	DefaultAPIBase = "https://api.telegram.org"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateInterval is the default minimum spacing between
	// outbound Bot API calls, below Telegram's global cap.
	DefaultRateInterval = 50 * time.Millisecond
)

// TelegramClient is a Telegram Bot API client.
type TelegramClient struct {
	apiBase    string
	token      string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// TelegramOption configures the TelegramClient.
type TelegramOption func(*TelegramClient)

// WithAPIBase sets a custom API base URL.
func WithAPIBase(apiBase string) TelegramOption {
	return func(c *TelegramClient) {
		c.apiBase = apiBase
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) TelegramOption {
	return func(c *TelegramClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) TelegramOption {
	return func(c *TelegramClient) {
		c.logger = logger
	}
}

// WithRateLimit sets the minimum interval between outbound calls.
func WithRateLimit(minInterval time.Duration) TelegramOption {
	return func(c *TelegramClient) {
		c.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
}

// NewTelegramClient creates a new Bot API client.
func NewTelegramClient(token string, opts ...TelegramOption) *TelegramClient {
	c := &TelegramClient{
		apiBase: DefaultAPIBase,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultRateInterval), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the Bot API.
type APIError struct {
	StatusCode  int
	Description string
	Method      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: %s (status %d, method: %s)", e.Description, e.StatusCode, e.Method)
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

// call performs a Bot API method call with a JSON payload.
func (c *TelegramClient) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	reqURL := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug().Str("method", method).Msg("Telegram API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.OK {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Description: envelope.Description,
			Method:      method,
		}
	}

	if result != nil && envelope.Result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}

// SendMessage posts a message to a chat, optionally as a reply.
// Returns the sent message id for later edits.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if replyTo > 0 {
		payload["reply_to_message_id"] = replyTo
	}

	var sent Message
	if err := c.call(ctx, "sendMessage", payload, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessageText replaces the text of a previously sent message.
func (c *TelegramClient) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// SetWebhook registers the public webhook URL with Telegram. The
// secret, when set, is echoed by Telegram on every webhook request.
func (c *TelegramClient) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	payload := map[string]interface{}{
		"url":             webhookURL,
		"allowed_updates": []string{"message"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

// DeleteWebhook unregisters the webhook.
func (c *TelegramClient) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]interface{}{}, nil)
}

// GetMe fetches the bot account, used as a connectivity probe.
func (c *TelegramClient) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetFile resolves a file id into a downloadable path.
func (c *TelegramClient) GetFile(ctx context.Context, fileID string) (*File, error) {
	var file File
	payload := map[string]interface{}{"file_id": fileID}
	if err := c.call(ctx, "getFile", payload, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DownloadFile fetches file content from the file API into destPath.
func (c *TelegramClient) DownloadFile(ctx context.Context, filePath, destPath string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.token, url.PathEscape(filePath))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Description: "file download failed", Method: "getFile"}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create download target: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	return nil
}
