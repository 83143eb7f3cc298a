package webhook

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/imgrelay/imgrelay/internal/botconfig"
	"github.com/imgrelay/imgrelay/internal/prefs"
	"github.com/imgrelay/imgrelay/internal/telegram"
)

// validChannels are the upload backends /settings accepts.
var validChannels = []string{"telegram", "cfr2", "s3", "discord", "huggingface"}

func validChannel(name string) bool {
	for _, c := range validChannels {
		if c == name {
			return true
		}
	}
	return false
}

func (h *Handler) handleCommand(ctx context.Context, settings botconfig.Settings, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	command := strings.ToLower(fields[0])
	// group chats address commands as /cmd@botname
	if idx := strings.Index(command, "@"); idx != -1 {
		command = command[:idx]
	}
	args := fields[1:]

	switch command {
	case "/start":
		h.reply(settings, chatID, telegram.WelcomeMessage)
		h.replyHTML(settings, chatID, telegram.HelpMessage)
	case "/help":
		h.replyHTML(settings, chatID, telegram.HelpMessage)
	case "/settings":
		h.handleSettings(ctx, settings, chatID, args)
	default:
		h.reply(settings, chatID, telegram.UnknownCommandMessage)
	}
}

// handleSettings routes the /settings argument forms. A first argument that
// contains a comma or names a valid format is a format list, anything else
// is treated as a channel name.
func (h *Handler) handleSettings(ctx context.Context, settings botconfig.Settings, chatID int64, args []string) {
	if len(args) == 0 {
		h.renderSettings(ctx, settings, chatID)
		return
	}

	first := strings.ToLower(args[0])
	if strings.Contains(first, ",") || telegram.ValidFormat(first) {
		h.updateFormats(ctx, settings, chatID, args)
		return
	}

	if !validChannel(first) {
		h.reply(settings, chatID, telegram.InvalidChannelMessage(first, validChannels))
		return
	}
	if !settings.AllowUserPreferences {
		h.reply(settings, chatID, telegram.PreferencesDisabledMessage)
		return
	}
	if _, err := h.prefs.Set(ctx, chatID, prefs.Update{UploadChannel: first}); err != nil {
		h.reply(settings, chatID, telegram.GenericErrorMessage(err.Error()))
		return
	}
	h.reply(settings, chatID, telegram.ChannelUpdatedMessage(first))
}

func (h *Handler) updateFormats(ctx context.Context, settings botconfig.Settings, chatID int64, args []string) {
	var formats, invalid []string
	for _, token := range strings.Split(strings.ToLower(args[0]), ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if telegram.ValidFormat(token) {
			formats = append(formats, token)
		} else {
			invalid = append(invalid, token)
		}
	}
	if len(invalid) > 0 {
		h.reply(settings, chatID, telegram.InvalidFormatsMessage(invalid))
		return
	}
	if len(formats) == 0 {
		h.reply(settings, chatID, telegram.EmptyFormatsMessage())
		return
	}
	formats = telegram.NormalizeFormats(formats)

	var channel string
	if len(args) > 1 {
		channel = strings.ToLower(args[1])
		if !validChannel(channel) {
			h.reply(settings, chatID, telegram.InvalidChannelMessage(channel, validChannels))
			return
		}
	}

	if !settings.AllowUserPreferences {
		h.reply(settings, chatID, telegram.PreferencesDisabledMessage)
		return
	}
	if _, err := h.prefs.Set(ctx, chatID, prefs.Update{Formats: formats, UploadChannel: channel}); err != nil {
		h.reply(settings, chatID, telegram.GenericErrorMessage(err.Error()))
		return
	}
	h.reply(settings, chatID, telegram.FormatsUpdatedMessage(formats))
	if channel != "" {
		h.reply(settings, chatID, telegram.ChannelUpdatedMessage(channel))
	}
}

func (h *Handler) renderSettings(ctx context.Context, settings botconfig.Settings, chatID int64) {
	preferences := h.chatPreferences(ctx, settings, chatID)
	h.replyHTML(settings, chatID, telegram.SettingsMessage(preferences.Formats, preferences.UploadChannel))
}

func (h *Handler) replyHTML(settings botconfig.Settings, chatID int64, text string) {
	if err := h.sender.SendHTML(settings.BotToken, chatID, text); err != nil {
		h.logger.Warn("send html reply", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
