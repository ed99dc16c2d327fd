// Package delivery implements the outbound messenger port on the Telegram
// Bot API.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"feedpulse/pkg/httputil"
)

const apiBase = "https://api.telegram.org"

// TelegramClient sends messages through a bot.
type TelegramClient struct {
	botToken string
	baseURL  string
	client   *http.Client
}

// NewTelegramClient creates a client with the pooled HTTP transport.
func NewTelegramClient(botToken string) *TelegramClient {
	return &TelegramClient{
		botToken: botToken,
		baseURL:  apiBase,
		client:   httputil.NewOptimizedClient(httputil.TelegramClientConfig()),
	}
}

// apiResponse is the Bot API envelope. Result is ignored; only ok and the
// error description matter here.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// SendMessage delivers text to a chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	return c.call(ctx, "sendMessage", form)
}

// ProbeChat verifies the chat is reachable via getChat. Telegram answers 403
// when the bot was blocked and 400 when the chat no longer exists.
func (c *TelegramClient) ProbeChat(ctx context.Context, chatID int64) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))

	return c.call(ctx, "getChat", form)
}

func (c *TelegramClient) call(ctx context.Context, method string, form url.Values) error {
	if c.botToken == "" {
		return fmt.Errorf("telegram client misconfigured: empty bot token")
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return fmt.Errorf("telegram %s: status %s, unparseable body", method, resp.Status)
	}
	if !api.OK {
		return fmt.Errorf("telegram %s: %d %s", method, api.ErrorCode, api.Description)
	}
	return nil
}
