package botconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imgrelay/imgrelay/internal/kv"
)

// StoreKey is the config-store key holding the settings document.
const StoreKey = "manage@sysConfig@telegram_bot"

const derivedSecretLength = 16

// storedDocument wraps the telegramBot block the way the admin surface
// persists it.
type storedDocument struct {
	TelegramBot *StoredSettings `json:"telegramBot"`
}

// Service resolves bot settings per request from environment overrides and
// the stored blob. It never caches: the admin surface may rewrite the blob
// at any time.
type Service struct {
	store  kv.Store
	env    EnvOverrides
	logger *slog.Logger
}

func NewService(log *slog.Logger, store kv.Store, env EnvOverrides) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		env:    env,
		logger: log.With(slog.String("service", "botconfig")),
	}
}

// Resolve computes the effective Settings. Environment credentials win over
// stored ones; a missing token in both places leaves the bot disabled.
func (s *Service) Resolve(ctx context.Context) (Settings, error) {
	stored, err := s.loadStored(ctx)
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		DefaultFormats:        DefaultFormats(),
		DefaultUploadChannel:  DefaultUploadChannel,
		AllowUserPreferences:  true,
		RateLimitPerMinute:    DefaultRateLimitPerMinute,
		AllowedFileTypes:      DefaultAllowedFileTypes(),
		MaxFileSizeMB:         DefaultMaxFileSizeMB,
		ServerCompressEnabled: true,
	}

	switch {
	case s.env.BotToken != "":
		settings.BotToken = s.env.BotToken
		settings.WebhookSecret = s.env.WebhookSecret
		if settings.WebhookSecret == "" {
			settings.WebhookSecret = deriveWebhookSecret(s.env.BotToken)
		}
		settings.Enabled = true
		settings.Fixed = true
		settings.SavePath = "environment variable"
	case stored != nil && stored.BotToken != "":
		settings.BotToken = stored.BotToken
		settings.WebhookSecret = stored.WebhookSecret
		if settings.WebhookSecret == "" {
			settings.WebhookSecret = deriveWebhookSecret(stored.BotToken)
		}
		settings.Enabled = stored.Enabled == nil || *stored.Enabled
	default:
		settings.Enabled = false
	}

	if stored != nil {
		settings.APIToken = stored.APIToken
		if len(stored.DefaultFormats) > 0 {
			settings.DefaultFormats = stored.DefaultFormats
		}
		if stored.DefaultUploadChannel != "" {
			settings.DefaultUploadChannel = stored.DefaultUploadChannel
		}
		if stored.AllowUserPreferences != nil {
			settings.AllowUserPreferences = *stored.AllowUserPreferences
		}
		if stored.RateLimitPerMinute != nil && *stored.RateLimitPerMinute > 0 {
			settings.RateLimitPerMinute = *stored.RateLimitPerMinute
		}
		if len(stored.AllowedFileTypes) > 0 {
			settings.AllowedFileTypes = stored.AllowedFileTypes
		}
		if stored.MaxFileSizeMB != nil && *stored.MaxFileSizeMB > 0 {
			settings.MaxFileSizeMB = *stored.MaxFileSizeMB
		}
		if stored.ServerCompressEnabled != nil {
			settings.ServerCompressEnabled = *stored.ServerCompressEnabled
		}
	}

	return settings, nil
}

// UpdateStored replaces the persisted telegramBot block. A nil incoming
// block keeps the current one, matching the admin endpoint's merge rule.
func (s *Service) UpdateStored(ctx context.Context, incoming *StoredSettings) error {
	current, err := s.loadStored(ctx)
	if err != nil {
		return err
	}
	if incoming != nil {
		current = incoming
	}
	doc, err := json.Marshal(storedDocument{TelegramBot: current})
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.store.Put(ctx, StoreKey, string(doc)); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}

func (s *Service) loadStored(ctx context.Context) (*StoredSettings, error) {
	raw, ok, err := s.store.Get(ctx, StoreKey)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var doc storedDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		s.logger.Warn("stored settings blob is not valid JSON, using defaults", slog.Any("error", err))
		return nil, nil
	}
	return doc.TelegramBot, nil
}

// deriveWebhookSecret falls back to the token's trailing characters when no
// explicit secret is configured.
func deriveWebhookSecret(botToken string) string {
	if botToken == "" {
		return ""
	}
	if len(botToken) <= derivedSecretLength {
		return botToken
	}
	return botToken[len(botToken)-derivedSecretLength:]
}
