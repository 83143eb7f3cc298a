// Package webhook receives Telegram updates and drives the image upload
// pipeline: authentication, rate limiting, file classification, fetch,
// forward, and the formatted reply.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/imgrelay/imgrelay/internal/botconfig"
	"github.com/imgrelay/imgrelay/internal/classify"
	"github.com/imgrelay/imgrelay/internal/prefs"
	"github.com/imgrelay/imgrelay/internal/ratelimit"
	"github.com/imgrelay/imgrelay/internal/telegram"
	"github.com/imgrelay/imgrelay/internal/upload"
)

// BotConfigResolver yields the effective bot settings for one request.
type BotConfigResolver interface {
	Resolve(ctx context.Context) (botconfig.Settings, error)
}

// PreferenceStore reads and merges per-chat preferences.
type PreferenceStore interface {
	Get(ctx context.Context, chatID int64) (prefs.Preferences, error)
	Set(ctx context.Context, chatID int64, update prefs.Update) (prefs.Preferences, error)
}

// RateLimiter gates uploads per chat.
type RateLimiter interface {
	Check(ctx context.Context, chatID int64, perMinute int) (ratelimit.Result, error)
}

// Sender delivers chat messages.
type Sender interface {
	SendPlain(token string, chatID int64, text string) error
	SendHTML(token string, chatID int64, text string) error
	SendUploadResult(token string, chatID int64, fileURL, fileName string, formats []string) error
	AnswerCallback(token, callbackID string) error
}

// Fetcher downloads (and possibly converts) a classified file.
type Fetcher interface {
	Fetch(ctx context.Context, token string, ref classify.FileRef) ([]byte, classify.FileRef, error)
}

// Forwarder pushes file bytes to the upload API.
type Forwarder interface {
	Forward(ctx context.Context, req upload.Request) (upload.Result, error)
}

type Handler struct {
	config    BotConfigResolver
	prefs     PreferenceStore
	limiter   RateLimiter
	sender    Sender
	fetcher   Fetcher
	forwarder Forwarder
	logger    *slog.Logger
}

func NewHandler(log *slog.Logger, config BotConfigResolver, preferences PreferenceStore, limiter RateLimiter, sender Sender, fetcher Fetcher, forwarder Forwarder) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		config:    config,
		prefs:     preferences,
		limiter:   limiter,
		sender:    sender,
		fetcher:   fetcher,
		forwarder: forwarder,
		logger:    log.With(slog.String("handler", "webhook")),
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/api/telegram/webhook/:secret", h.Handle)
	e.POST("/api/telegram/webhook/:secret/*", h.Handle)
	e.POST("/api/telegram/test/:secret", h.SelfTest)
}

// Handle processes one webhook delivery. Only the auth checks may return a
// non-2xx status; every processing failure after them is answered with 200
// so Telegram does not retry the update.
func (h *Handler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.config.Resolve(ctx)
	if err != nil {
		h.logger.Error("resolve bot settings", slog.Any("error", err))
		return c.String(http.StatusServiceUnavailable, "Telegram Bot is not enabled")
	}
	if !settings.Enabled {
		return c.String(http.StatusServiceUnavailable, "Telegram Bot is not enabled")
	}

	claimed := pathSecret(c)
	if subtle.ConstantTimeCompare([]byte(claimed), []byte(settings.WebhookSecret)) != 1 {
		return c.String(http.StatusUnauthorized, "Unauthorized")
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		h.logger.Warn("unparseable update body", slog.Any("error", err))
		return c.String(http.StatusOK, "OK")
	}

	switch {
	case update.Message != nil:
		h.handleMessage(ctx, settings, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(settings, update.CallbackQuery)
	}
	return c.String(http.StatusOK, "OK")
}

// SelfTest answers webhook connectivity probes without touching settings.
func (h *Handler) SelfTest(c echo.Context) error {
	h.logger.Info("test webhook received request",
		slog.String("secret", c.Param("secret")),
		slog.String("remote", c.RealIP()))
	return c.String(http.StatusOK, "OK - Test webhook working!")
}

// pathSecret joins the :secret segment with any trailing wildcard segments,
// so secrets containing slashes still match.
func pathSecret(c echo.Context) string {
	secret := c.Param("secret")
	if rest := c.Param("*"); rest != "" {
		secret += "/" + rest
	}
	return secret
}

func (h *Handler) handleMessage(ctx context.Context, settings botconfig.Settings, msg *tgbotapi.Message) {
	switch {
	case len(msg.Text) > 0 && msg.Text[0] == '/':
		h.handleCommand(ctx, settings, msg)
	case msg.Photo != nil || msg.Document != nil:
		h.handleFileUpload(ctx, settings, msg)
	}
}

func (h *Handler) handleCallback(settings botconfig.Settings, cb *tgbotapi.CallbackQuery) {
	if cb.Message != nil {
		h.reply(settings, cb.Message.Chat.ID, telegram.CallbackReply(cb.Data))
	}
	if err := h.sender.AnswerCallback(settings.BotToken, cb.ID); err != nil {
		h.logger.Warn("answer callback", slog.Any("error", err))
	}
}

func (h *Handler) handleFileUpload(ctx context.Context, settings botconfig.Settings, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	limit, err := h.limiter.Check(ctx, chatID, settings.RateLimitPerMinute)
	if err != nil {
		// Fail open: a broken counter store should not block uploads.
		h.logger.Warn("rate limit check", slog.Int64("chat_id", chatID), slog.Any("error", err))
	} else if !limit.Allowed {
		h.reply(settings, chatID, telegram.RateLimitedMessage(limit.ResetTime))
		return
	}

	ref, ok := classify.FromMessage(msg)
	if !ok {
		return
	}
	if err := classify.Validate(ref, settings); err != nil {
		h.reply(settings, chatID, telegram.ErrorMessage(validationErrorKind(err)))
		return
	}

	data, ref, err := h.fetcher.Fetch(ctx, settings.BotToken, ref)
	if err != nil {
		h.logger.Error("fetch file", slog.Int64("chat_id", chatID), slog.Any("error", err))
		h.reply(settings, chatID, telegram.GenericErrorMessage(err.Error()))
		return
	}

	preferences := h.chatPreferences(ctx, settings, chatID)
	channel := preferences.UploadChannel
	if channel == "" {
		channel = settings.DefaultUploadChannel
	}

	result, err := h.forwarder.Forward(ctx, upload.Request{
		FileName:      ref.FileName,
		MimeType:      ref.MimeType,
		Data:          data,
		UploadChannel: channel,
		APIToken:      settings.APIToken,
	})
	if err != nil {
		h.logger.Error("forward upload", slog.Int64("chat_id", chatID), slog.Any("error", err))
		if kind, ok := uploadErrorKind(err); ok {
			h.reply(settings, chatID, telegram.ErrorMessage(kind))
		} else {
			h.reply(settings, chatID, telegram.GenericErrorMessage(err.Error()))
		}
		return
	}

	if err := h.sender.SendUploadResult(settings.BotToken, chatID, result.URL, ref.FileName, preferences.Formats); err != nil {
		h.logger.Warn("send upload result", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

// chatPreferences resolves the preferences used for one upload. When the
// administrator disabled per-chat preferences every chat sees the bot
// defaults.
func (h *Handler) chatPreferences(ctx context.Context, settings botconfig.Settings, chatID int64) prefs.Preferences {
	if !settings.AllowUserPreferences {
		return prefs.Preferences{
			Formats:       settings.DefaultFormats,
			UploadChannel: settings.DefaultUploadChannel,
		}
	}
	preferences, err := h.prefs.Get(ctx, chatID)
	if err != nil {
		h.logger.Warn("load preferences", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return prefs.Preferences{
			Formats:       settings.DefaultFormats,
			UploadChannel: settings.DefaultUploadChannel,
		}
	}
	return preferences
}

func validationErrorKind(err error) string {
	switch {
	case errors.Is(err, classify.ErrFileTooLarge):
		return telegram.ErrKindFileTooLarge
	default:
		return telegram.ErrKindInvalidFileType
	}
}

func uploadErrorKind(err error) (string, bool) {
	switch {
	case errors.Is(err, upload.ErrUnauthorized):
		return telegram.ErrKindUnauthorized, true
	case errors.Is(err, upload.ErrStorageFull):
		return telegram.ErrKindStorageFull, true
	case errors.Is(err, upload.ErrUploadFailed):
		return telegram.ErrKindUploadFailed, true
	default:
		return "", false
	}
}

// reply sends a plain chat message, logging delivery failures instead of
// surfacing them. The webhook response must stay 200 either way.
func (h *Handler) reply(settings botconfig.Settings, chatID int64, text string) {
	if err := h.sender.SendPlain(settings.BotToken, chatID, text); err != nil {
		h.logger.Warn("send reply", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
