package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/imgrelay/imgrelay/internal/botconfig"
)

// BotSettingsService resolves and mutates the stored bot settings.
type BotSettingsService interface {
	Resolve(ctx context.Context) (botconfig.Settings, error)
	UpdateStored(ctx context.Context, incoming *botconfig.StoredSettings) error
}

// sysConfigDocument is the wire shape of the management endpoint, both
// directions.
type sysConfigDocument struct {
	TelegramBot *botconfig.StoredSettings `json:"telegramBot"`
}

type sysConfigResponse struct {
	TelegramBot botconfig.Settings `json:"telegramBot"`
}

// SysConfigHandler serves the bot block of the management configuration.
// Requests must carry the bot API token as a bearer token; an empty
// configured token leaves the endpoint open for bootstrap.
type SysConfigHandler struct {
	service  BotSettingsService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSysConfigHandler(log *slog.Logger, service BotSettingsService) *SysConfigHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SysConfigHandler{
		service:  service,
		validate: validator.New(),
		logger:   log.With(slog.String("handler", "sysconfig")),
	}
}

func (h *SysConfigHandler) Register(e *echo.Echo) {
	e.GET("/api/manage/sysConfig/telegram_bot", h.Get)
	e.POST("/api/manage/sysConfig/telegram_bot", h.Update)
}

func (h *SysConfigHandler) Get(c echo.Context) error {
	settings, err := h.service.Resolve(c.Request().Context())
	if err != nil {
		h.logger.Error("resolve settings", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settings unavailable"})
	}
	if !h.authorized(c, settings) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, sysConfigResponse{TelegramBot: settings})
}

func (h *SysConfigHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.service.Resolve(ctx)
	if err != nil {
		h.logger.Error("resolve settings", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settings unavailable"})
	}
	if !h.authorized(c, settings) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	var doc sysConfigDocument
	if err := c.Bind(&doc); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	if doc.TelegramBot != nil {
		if err := h.validate.Struct(doc.TelegramBot); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}

	if err := h.service.UpdateStored(ctx, doc.TelegramBot); err != nil {
		h.logger.Error("update settings", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "update failed"})
	}

	updated, err := h.service.Resolve(ctx)
	if err != nil {
		h.logger.Error("resolve settings after update", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settings unavailable"})
	}
	return c.JSON(http.StatusOK, sysConfigResponse{TelegramBot: updated})
}

func (h *SysConfigHandler) authorized(c echo.Context, settings botconfig.Settings) bool {
	if settings.APIToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(settings.APIToken)) == 1
}
