package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	tginfra "github.com/subochevgeni/morrigan-postcards/internal/infra/telegram"
	"github.com/subochevgeni/morrigan-postcards/internal/services/adminbot"
	httperrors "github.com/subochevgeni/morrigan-postcards/internal/transport/http/errors"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type BotService interface {
	HandleMessage(ctx context.Context, msg adminbot.Message) error
	HandleCallback(ctx context.Context, cb adminbot.Callback) error
}

// WebhookHandler receives Telegram updates pushed to the webhook URL.
// Telegram expects HTTP 200 for anything it delivers; returning an error
// status only makes it redeliver the same update.
type WebhookHandler struct {
	bot    BotService
	secret string
	logger *zap.Logger
}

func NewWebhookHandler(bot BotService, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{bot: bot, secret: secret, logger: logger}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
			Code:    "UNAUTHORIZED",
			Message: "bad webhook secret",
		})
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Debug("malformed webhook update", zap.Error(err))
		writeWebhookOK(w)
		return
	}

	if h.bot != nil {
		h.dispatch(r.Context(), update)
	}

	writeWebhookOK(w)
}

func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get(webhookSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func (h *WebhookHandler) dispatch(ctx context.Context, update tgbotapi.Update) {
	DispatchUpdate(ctx, h.bot, update, h.logger)
}

// DispatchUpdate routes a raw Telegram update into the admin console. It is
// shared between the webhook route and the long-polling fallback.
func DispatchUpdate(ctx context.Context, bot BotService, update tgbotapi.Update, logger *zap.Logger) {
	if bot == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	msg, cb := tginfra.Classify(update)

	switch {
	case msg != nil:
		photos := make([]adminbot.Photo, 0, len(msg.Photos))
		for _, p := range msg.Photos {
			photos = append(photos, adminbot.Photo{FileID: p.FileID, Width: p.Width, Height: p.Height})
		}
		err := bot.HandleMessage(ctx, adminbot.Message{
			ChatID:      msg.ChatID,
			UserID:      msg.UserID,
			Username:    msg.Username,
			Command:     msg.Command,
			Args:        msg.Args,
			Text:        msg.Text,
			Caption:     msg.Caption,
			Photos:      photos,
			HasDocument: msg.HasDocument,
		})
		if err != nil {
			logger.Error("handle bot message", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		}

	case cb != nil:
		err := bot.HandleCallback(ctx, adminbot.Callback{
			CallbackID: cb.CallbackID,
			ChatID:     cb.ChatID,
			UserID:     cb.UserID,
			Data:       cb.Data,
		})
		if err != nil {
			logger.Error("handle bot callback", zap.Int64("chat_id", cb.ChatID), zap.Error(err))
		}
	}
}

func writeWebhookOK(w http.ResponseWriter) {
	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}
