// Package telegram is a minimal Bot API client used to deliver OTP codes to a chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 15 * time.Second
)

// ErrNotConfigured is returned when the bot token or chat id is missing.
var ErrNotConfigured = errors.New("telegram: bot token and chat id are required")

// Client posts messages to a single chat through the Bot API.
type Client struct {
	botToken   string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// NewClient returns a client for botToken/chatID. An empty baseURL uses the public Bot API.
func NewClient(botToken, chatID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		botToken:   botToken,
		chatID:     chatID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendMessage delivers text to the configured chat.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if c.botToken == "" || c.chatID == "" {
		return ErrNotConfigured
	}

	raw, err := json.Marshal(sendMessageRequest{ChatID: c.chatID, Text: text})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the URL embeds the bot token; keep it out of the error
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("telegram: send message: %w", urlErr.Err)
		}
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("telegram: status=%d body=%s", resp.StatusCode, string(body))
	}
	if !out.OK {
		return fmt.Errorf("telegram: status=%d code=%d: %s", resp.StatusCode, out.ErrorCode, out.Description)
	}

	return nil
}
