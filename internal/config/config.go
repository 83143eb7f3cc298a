package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultRedisAddr     = "127.0.0.1:6379"
	DefaultUploadBaseURL = "http://127.0.0.1:8787"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Upload   UploadConfig   `toml:"upload"`
	Telegram TelegramConfig `toml:"telegram"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// RedisConfig locates the key-value store holding bot settings, chat
// preferences, and rate-limit windows. An empty Addr switches the service
// to the in-memory store, which loses state on restart.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// UploadConfig locates the image-bed upload API files are forwarded to.
type UploadConfig struct {
	BaseURL string `toml:"base_url"`
}

type TelegramConfig struct {
	// APIEndpoint overrides the Bot API endpoint template, for
	// deployments running a local Bot API server.
	APIEndpoint string `toml:"api_endpoint"`
	// TransformProxyURL is the image-transform prefix used for HEIC to
	// JPEG conversion. Empty disables the conversion attempt.
	TransformProxyURL string `toml:"transform_proxy_url"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Upload: UploadConfig{
			BaseURL: DefaultUploadBaseURL,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
