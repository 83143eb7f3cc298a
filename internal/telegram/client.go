// Package telegram wraps the chat-platform API used by the webhook
// pipeline: message sends in the supported parse modes, file resolution and
// download, and callback-query acknowledgment.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client talks to the Telegram Bot API. Bot handles are cached per token
// because settings are re-resolved on every request and the token may
// change between requests.
type Client struct {
	logger      *slog.Logger
	httpClient  *http.Client
	apiEndpoint string

	mu   sync.RWMutex
	bots map[string]*tgbotapi.BotAPI
}

func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		logger:      log.With(slog.String("service", "telegram")),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		apiEndpoint: tgbotapi.APIEndpoint,
		bots:        make(map[string]*tgbotapi.BotAPI),
	}
}

// SetAPIEndpoint overrides the Bot API endpoint template. Used by tests and
// by deployments running a local Bot API server.
func (c *Client) SetAPIEndpoint(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiEndpoint = endpoint
	c.bots = make(map[string]*tgbotapi.BotAPI)
}

func (c *Client) bot(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	c.mu.RLock()
	bot, ok := c.bots[token]
	c.mu.RUnlock()
	if ok {
		return bot, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if bot, ok := c.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, c.apiEndpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	c.bots[token] = bot
	return bot, nil
}

// SendPlain sends text without a parse mode.
func (c *Client) SendPlain(token string, chatID int64, text string) error {
	return c.send(token, chatID, text, "")
}

// SendHTML sends text in HTML parse mode.
func (c *Client) SendHTML(token string, chatID int64, text string) error {
	return c.send(token, chatID, text, tgbotapi.ModeHTML)
}

// SendMarkdownV2 sends text in MarkdownV2 parse mode. The caller is
// responsible for escaping.
func (c *Client) SendMarkdownV2(token string, chatID int64, text string) error {
	return c.send(token, chatID, text, tgbotapi.ModeMarkdownV2)
}

func (c *Client) send(token string, chatID int64, text, parseMode string) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a callback query so the client stops showing
// its progress indicator.
func (c *Client) AnswerCallback(token, callbackID string) error {
	bot, err := c.bot(token)
	if err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// FileURL resolves a file id to its direct download URL.
func (c *Client) FileURL(token, fileID string) (string, error) {
	bot, err := c.bot(token)
	if err != nil {
		return "", err
	}
	url, err := bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}
	return url, nil
}

// Download resolves a file id and fetches its raw bytes.
func (c *Client) Download(ctx context.Context, token, fileID string) ([]byte, error) {
	url, err := c.FileURL(token, fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download file status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	return data, nil
}
