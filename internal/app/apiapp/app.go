package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/config"
	"github.com/subochevgeni/morrigan-postcards/internal/infra/httpclient"
	s3infra "github.com/subochevgeni/morrigan-postcards/internal/infra/s3"
	tginfra "github.com/subochevgeni/morrigan-postcards/internal/infra/telegram"
	"github.com/subochevgeni/morrigan-postcards/internal/jobs/maintenance"
	pgrepo "github.com/subochevgeni/morrigan-postcards/internal/repo/postgres"
	redrepo "github.com/subochevgeni/morrigan-postcards/internal/repo/redis"
	actionssvc "github.com/subochevgeni/morrigan-postcards/internal/services/adminactions"
	adminbotsvc "github.com/subochevgeni/morrigan-postcards/internal/services/adminbot"
	captchasvc "github.com/subochevgeni/morrigan-postcards/internal/services/captcha"
	cardssvc "github.com/subochevgeni/morrigan-postcards/internal/services/cards"
	dedupsvc "github.com/subochevgeni/morrigan-postcards/internal/services/dedup"
	notifysvc "github.com/subochevgeni/morrigan-postcards/internal/services/notify"
	ratesvc "github.com/subochevgeni/morrigan-postcards/internal/services/rate"
	requestssvc "github.com/subochevgeni/morrigan-postcards/internal/services/requests"
	reservationsvc "github.com/subochevgeni/morrigan-postcards/internal/services/reservation"
	"github.com/subochevgeni/morrigan-postcards/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	bot        *tginfra.Bot
	botService *adminbotsvc.Service
	janitor    *maintenance.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	var bot *tginfra.Bot
	if strings.TrimSpace(cfg.Bot.Token) != "" {
		b, err := tginfra.NewBot(cfg.Bot.Token)
		if err != nil {
			log.Warn("telegram bot init failed, admin console disabled", zap.Error(err))
		} else {
			bot = b
		}
	} else {
		log.Warn("TG_BOT_TOKEN is empty, admin console disabled")
	}

	cardRepo := pgrepo.NewCardRepo(pool)
	requestRepo := pgrepo.NewRequestRepo(pool)
	actionRepo := pgrepo.NewAdminActionRepo(pool)
	rateRepo := redrepo.NewRateRepo(redisClient)

	storage := cardssvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	cardService := cardssvc.NewService(cardRepo, storage, log)
	reservationService := reservationsvc.NewService(cardRepo, cfg.Exchange.HoldDuration, log)
	dedupService := dedupsvc.NewService(requestRepo, cfg.Exchange.DedupWindow)
	actionService := actionssvc.NewService(actionRepo, cfg.Exchange.TokenTTL, cfg.Exchange.MaxCartSize, log)
	captchaService := captchasvc.NewService(captchasvc.Config{
		Secret:    cfg.Turnstile.Secret,
		Hostname:  cfg.Turnstile.Hostname,
		VerifyURL: cfg.Turnstile.VerifyURL,
	}, httpclient.New(10*time.Second))
	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Exchange.RequestsPerMinute, cfg.Exchange.RequestsPer10Sec)

	notifyService := notifysvc.NewService(
		botMessenger{bot: bot},
		actionService,
		cfg.Bot.Admins(),
		cfg.Site.PublicURL,
		log,
	)
	requestService := requestssvc.NewService(
		cardRepo,
		requestRepo,
		reservationService,
		dedupService,
		notifyService,
		log,
	)
	botService := adminbotsvc.NewService(
		bot,
		bot,
		cardService,
		actionService,
		cfg.Bot.Admins(),
		cfg.Bot.PrimaryAdminID(),
		cfg.Site.PublicURL,
		log,
	)

	janitor := maintenance.New(reservationService, actionService, cfg.Maintenance.Interval, log)

	RegisterRoutes(r, Dependencies{
		CardService:        cardService,
		RequestService:     requestService,
		ReservationService: reservationService,
		CaptchaService:     captchaService,
		RateLimiter:        rateLimiter,
		BotService:         botService,
		Logger:             log,
		Config:             cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		bot:        bot,
		botService: botService,
		janitor:    janitor,
		httpRouter: r,
	}, nil
}

// Run serves HTTP and drives the maintenance loop until the context ends.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))

	go func() {
		if err := a.janitor.RunLoop(ctx); err != nil {
			a.logger.Error("maintenance loop stopped", zap.Error(err))
		}
	}()

	// Without a webhook secret Telegram cannot be pushing updates to /tg,
	// so fall back to long polling for the admin console.
	if a.bot != nil && a.cfg.Bot.WebhookSecret == "" {
		go func() {
			err := a.bot.Listen(ctx, func(ctx context.Context, update tgbotapi.Update) {
				handlers.DispatchUpdate(ctx, a.botService, update, a.logger)
			})
			if err != nil {
				a.logger.Error("bot long polling stopped", zap.Error(err))
			}
		}()
	}

	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)

	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}

	return err
}
