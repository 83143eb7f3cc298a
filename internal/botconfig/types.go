package botconfig

import "strings"

// Default values applied when the stored settings blob omits a field.
const (
	DefaultUploadChannel      = "telegram"
	DefaultRateLimitPerMinute = 10
	DefaultMaxFileSizeMB      = 50
)

// DefaultFormats is the output-format list used until a chat picks its own.
func DefaultFormats() []string {
	return []string{"html", "markdown"}
}

// DefaultAllowedFileTypes is the MIME allow-list applied when none is stored.
func DefaultAllowedFileTypes() []string {
	return []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml"}
}

// Settings is the fully resolved bot configuration, recomputed on every
// request from environment overrides merged over the stored blob. The
// pipeline only reads it.
type Settings struct {
	Enabled               bool     `json:"enabled"`
	BotToken              string   `json:"botToken"`
	WebhookSecret         string   `json:"webhookSecret"`
	APIToken              string   `json:"apiToken"`
	RateLimitPerMinute    int      `json:"rateLimitPerMinute"`
	AllowedFileTypes      []string `json:"allowedFileTypes"`
	MaxFileSizeMB         int      `json:"maxFileSizeMB"`
	DefaultFormats        []string `json:"defaultFormats"`
	DefaultUploadChannel  string   `json:"defaultUploadChannel"`
	AllowUserPreferences  bool     `json:"allowUserPreferences"`
	ServerCompressEnabled bool     `json:"serverCompressEnabled"`
	// Fixed marks token/secret as pinned by environment variables; the
	// sysConfig endpoint reports it so the admin UI disables those fields.
	Fixed    bool   `json:"fixed"`
	SavePath string `json:"savePath,omitempty"`
}

// MaxFileSizeBytes converts the configured MB cap to bytes.
func (s Settings) MaxFileSizeBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1024 * 1024
}

// AllowsFileType reports whether mimeType is on the allow-list.
func (s Settings) AllowsFileType(mimeType string) bool {
	for _, allowed := range s.AllowedFileTypes {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

// StoredSettings is the shape of the telegramBot block persisted in the
// config store. Pointer fields distinguish "absent" from zero so resolution
// can fall back to defaults, mirroring the stored-JSON contract.
type StoredSettings struct {
	Enabled               *bool    `json:"enabled,omitempty"`
	BotToken              string   `json:"botToken,omitempty"`
	WebhookSecret         string   `json:"webhookSecret,omitempty"`
	APIToken              string   `json:"apiToken,omitempty"`
	RateLimitPerMinute    *int     `json:"rateLimitPerMinute,omitempty" validate:"omitempty,gte=0"`
	AllowedFileTypes      []string `json:"allowedFileTypes,omitempty"`
	MaxFileSizeMB         *int     `json:"maxFileSizeMB,omitempty" validate:"omitempty,gte=0"`
	DefaultFormats        []string `json:"defaultFormats,omitempty" validate:"omitempty,dive,oneof=html markdown plain"`
	DefaultUploadChannel  string   `json:"defaultUploadChannel,omitempty" validate:"omitempty,oneof=telegram cfr2 s3 discord huggingface"`
	AllowUserPreferences  *bool    `json:"allowUserPreferences,omitempty"`
	ServerCompressEnabled *bool    `json:"serverCompressEnabled,omitempty"`
}

// EnvOverrides carries the process-environment bot credentials. A non-empty
// BotToken pins the token and secret and force-enables the bot.
type EnvOverrides struct {
	BotToken      string
	WebhookSecret string
}
