// Package prefs stores per-chat output preferences in the config store.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/imgrelay/imgrelay/internal/kv"
)

const storeKeyPrefix = "telegram_bot@preferences:"

// Preferences are a chat's selected output formats and upload channel.
type Preferences struct {
	Formats       []string `json:"formats"`
	UploadChannel string   `json:"uploadChannel"`
}

// Update is a partial preference change. Nil/empty fields keep the current
// value.
type Update struct {
	Formats       []string
	UploadChannel string
}

// Defaults returns the preferences a chat gets before its first /settings.
func Defaults() Preferences {
	return Preferences{
		Formats:       []string{"html", "markdown"},
		UploadChannel: "telegram",
	}
}

type Service struct {
	store  kv.Store
	logger *slog.Logger
}

func NewService(log *slog.Logger, store kv.Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "prefs")),
	}
}

// Get loads a chat's preferences, lazily falling back to defaults for
// missing or unreadable entries. Store failures propagate.
func (s *Service) Get(ctx context.Context, chatID int64) (Preferences, error) {
	raw, ok, err := s.store.Get(ctx, storeKey(chatID))
	if err != nil {
		return Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	if !ok {
		return Defaults(), nil
	}
	var prefs Preferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		s.logger.Warn("preferences blob is not valid JSON, using defaults",
			slog.Int64("chat_id", chatID), slog.Any("error", err))
		return Defaults(), nil
	}
	if len(prefs.Formats) == 0 {
		prefs.Formats = Defaults().Formats
	}
	if prefs.UploadChannel == "" {
		prefs.UploadChannel = Defaults().UploadChannel
	}
	return prefs, nil
}

// Set merges update into the chat's current preferences and persists the
// result. The write is last-writer-wins; concurrent updates from the same
// chat may race, which the store contract accepts.
func (s *Service) Set(ctx context.Context, chatID int64, update Update) (Preferences, error) {
	current, err := s.Get(ctx, chatID)
	if err != nil {
		return Preferences{}, err
	}
	if len(update.Formats) > 0 {
		current.Formats = update.Formats
	}
	if update.UploadChannel != "" {
		current.UploadChannel = update.UploadChannel
	}
	encoded, err := json.Marshal(current)
	if err != nil {
		return Preferences{}, fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.store.Put(ctx, storeKey(chatID), string(encoded)); err != nil {
		return Preferences{}, fmt.Errorf("persist preferences: %w", err)
	}
	return current, nil
}

func storeKey(chatID int64) string {
	return storeKeyPrefix + strconv.FormatInt(chatID, 10)
}
