package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/config"
	adminbotsvc "github.com/subochevgeni/morrigan-postcards/internal/services/adminbot"
	captchasvc "github.com/subochevgeni/morrigan-postcards/internal/services/captcha"
	cardssvc "github.com/subochevgeni/morrigan-postcards/internal/services/cards"
	ratesvc "github.com/subochevgeni/morrigan-postcards/internal/services/rate"
	requestssvc "github.com/subochevgeni/morrigan-postcards/internal/services/requests"
	reservationsvc "github.com/subochevgeni/morrigan-postcards/internal/services/reservation"
	"github.com/subochevgeni/morrigan-postcards/internal/transport/http/handlers"
)

type Dependencies struct {
	CardService        *cardssvc.Service
	RequestService     *requestssvc.Service
	ReservationService *reservationsvc.Service
	CaptchaService     *captchasvc.Service
	RateLimiter        *ratesvc.Limiter
	BotService         *adminbotsvc.Service
	Logger             *zap.Logger
	Config             config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	cardsHandler := handlers.NewCardsHandler(deps.CardService, deps.ReservationService, deps.Logger)
	configHandler := handlers.NewConfigHandler(deps.Config)
	requestHandler := handlers.NewRequestHandler(
		deps.RequestService,
		deps.CaptchaService,
		deps.RateLimiter,
		deps.ReservationService,
		deps.Logger,
	)
	imageHandler := handlers.NewImageHandler(deps.CardService, deps.Logger)
	webhookHandler := handlers.NewWebhookHandler(deps.BotService, deps.Config.Bot.WebhookSecret, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cards", cardsHandler.List)
		r.Get("/categories", cardsHandler.Categories)
		r.Get("/config", configHandler.Handle)
		r.Post("/request", requestHandler.Handle)
	})

	r.Get("/img/{file}", imageHandler.Full)
	r.Get("/thumb/{file}", imageHandler.Thumb)

	r.Post("/tg", webhookHandler.Handle)
}
