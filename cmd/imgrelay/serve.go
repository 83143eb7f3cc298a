package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/imgrelay/imgrelay/internal/botconfig"
	"github.com/imgrelay/imgrelay/internal/config"
	"github.com/imgrelay/imgrelay/internal/handlers"
	"github.com/imgrelay/imgrelay/internal/kv"
	"github.com/imgrelay/imgrelay/internal/logger"
	"github.com/imgrelay/imgrelay/internal/media"
	"github.com/imgrelay/imgrelay/internal/prefs"
	"github.com/imgrelay/imgrelay/internal/ratelimit"
	"github.com/imgrelay/imgrelay/internal/server"
	"github.com/imgrelay/imgrelay/internal/telegram"
	"github.com/imgrelay/imgrelay/internal/upload"
	"github.com/imgrelay/imgrelay/internal/version"
	"github.com/imgrelay/imgrelay/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideEnvOverrides,
			provideKVStore,
			botconfig.NewService,
			prefs.NewService,
			ratelimit.NewLimiter,
			provideTelegramClient,
			provideFetcher,
			provideForwarder,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideSysConfigHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideEnvOverrides() botconfig.EnvOverrides {
	return botconfig.EnvOverrides{
		BotToken:      os.Getenv("TG_BOT_TOKEN"),
		WebhookSecret: os.Getenv("TG_WEBHOOK_SECRET"),
	}
}

func provideKVStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (kv.Store, error) {
	if cfg.Redis.Addr == "" {
		log.Warn("redis addr empty, using in-memory store")
		return kv.NewMemoryStore(), nil
	}
	store, err := kv.NewRedisStore(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return store.Close() }})
	return store, nil
}

func provideTelegramClient(log *slog.Logger, cfg config.Config) *telegram.Client {
	client := telegram.NewClient(log)
	if cfg.Telegram.APIEndpoint != "" {
		client.SetAPIEndpoint(cfg.Telegram.APIEndpoint)
	}
	return client
}

func provideFetcher(log *slog.Logger, cfg config.Config, client *telegram.Client) *media.Fetcher {
	return media.NewFetcher(client, cfg.Telegram.TransformProxyURL, log)
}

func provideForwarder(log *slog.Logger, cfg config.Config) *upload.Forwarder {
	return upload.NewForwarder(cfg.Upload.BaseURL, log)
}

func provideSysConfigHandler(log *slog.Logger, service *botconfig.Service) *handlers.SysConfigHandler {
	return handlers.NewSysConfigHandler(log, service)
}

func provideWebhookHandler(log *slog.Logger, configService *botconfig.Service, prefsService *prefs.Service, limiter *ratelimit.Limiter, client *telegram.Client, fetcher *media.Fetcher, forwarder *upload.Forwarder) *webhook.Handler {
	return webhook.NewHandler(log, configService, prefsService, limiter, client, fetcher, forwarder)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting imgrelay %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
