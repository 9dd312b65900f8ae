package handlers

import (
	"net/http"

	"github.com/subochevgeni/morrigan-postcards/internal/config"
	"github.com/subochevgeni/morrigan-postcards/internal/transport/http/dto"
	httperrors "github.com/subochevgeni/morrigan-postcards/internal/transport/http/errors"
)

type ConfigHandler struct {
	cfg config.Config
}

func NewConfigHandler(cfg config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// Handle exposes the public half of the configuration: everything the
// showcase page needs to render the request form. Secrets stay server-side.
func (h *ConfigHandler) Handle(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, dto.PublicConfigResponse{
		SiteURL:          h.cfg.Site.PublicURL,
		TurnstileSiteKey: h.cfg.Turnstile.SiteKey,
		BotUsername:      h.cfg.Bot.Username,
		MaxCartSize:      h.cfg.Exchange.MaxCartSize,
	})
}
