// Package main is the entrypoint for the storefront API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shelfkit/shelfkit/internal/auth"
	"github.com/shelfkit/shelfkit/internal/cache"
	"github.com/shelfkit/shelfkit/internal/config"
	"github.com/shelfkit/shelfkit/internal/handler"
	"github.com/shelfkit/shelfkit/internal/mail"
	"github.com/shelfkit/shelfkit/internal/metrics"
	"github.com/shelfkit/shelfkit/internal/middleware"
	"github.com/shelfkit/shelfkit/internal/payments"
	"github.com/shelfkit/shelfkit/internal/repository"
	"github.com/shelfkit/shelfkit/internal/server"
	"github.com/shelfkit/shelfkit/internal/service"
	"github.com/shelfkit/shelfkit/internal/webhook"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	mailDB, err := mail.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open mail outbox",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer mailDB.Close()
	outbox := mail.NewOutbox(mailDB)

	recorder := metrics.NewInMemory()
	paymentsClient := payments.NewClient(cfg.PaymentsSecretKey,
		payments.WithBaseURL(cfg.PaymentsAPIURL),
		payments.WithLogger(logger),
	)

	keyEnv := auth.EnvTest
	if cfg.IsProduction() {
		keyEnv = auth.EnvLive
	}

	notifier := mail.NewNotifier(outbox, cfg.MailFrom, cfg.GetSignupURL(), logger)
	purchases := service.NewPurchaseService(repo, notifier, logger, recorder)
	accounts := service.NewAccountService(repo, paymentsClient, cfg.BaseURL, keyEnv, logger, recorder)
	products := service.NewProductService(repo, logger, recorder)
	checkout := service.NewCheckoutService(repo, paymentsClient, service.CheckoutConfig{
		Currency:       cfg.CheckoutCurrency,
		ApplicationFee: cfg.CheckoutApplicationFee,
		DefaultImage:   cfg.CheckoutDefaultImage,
		BaseURL:        cfg.BaseURL,
	}, logger, recorder)

	dispatcher := webhook.NewDispatcher()
	purchases.RegisterHandlers(dispatcher)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:  logger,
		Health:  handler.NewHealthHandler(repo, cacheClient, logger),
		Metrics: handler.NewMetricsHandler(recorder),
		Webhook: handler.NewWebhookHandler(handler.WebhookConfig{
			Secret:          cfg.PaymentsWebhookSecret,
			SignatureHeader: cfg.PaymentsSignatureHeader,
			Tolerance:       cfg.PaymentsSignatureTolerance,
			ClaimTTL:        cfg.EventClaimTTL,
			MaxBodyBytes:    cfg.MaxRequestBodySize,
		}, cacheClient, dispatcher, logger, recorder),
		Products: handler.NewProductHandler(products, logger),
		Checkout: handler.NewCheckoutHandler(checkout, accounts, logger),
		Accounts: handler.NewAccountHandler(accounts, logger),
		Auth: middleware.AuthConfig{
			Logger:      logger,
			Keys:        repo,
			Cache:       cacheClient,
			MinDuration: 200 * time.Millisecond,
		},
		CheckoutRateLimit: middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: cacheClient,
			Scope:   "checkout",
			Enabled: cfg.RateLimitCheckoutEnabled,
			RPS:     cfg.RateLimitCheckoutRPS,
			Burst:   cfg.RateLimitCheckoutBurst,
		},
		CORSOrigins:   cfg.GetCORSAllowedOrigins(),
		IsDevelopment: cfg.IsDevelopment(),
		MaxBodyBytes:  cfg.MaxRequestBodySize,
	})

	srv := server.New(router, cfg.AppPort, cfg.ReadTimeout, cfg.WriteTimeout, cfg.ShutdownTimeout, logger)

	sender, err := newSender(cfg, logger)
	if err != nil {
		logger.Error("invalid SMTP configuration", "error", err)
		os.Exit(1)
	}
	worker := mail.NewWorker(outbox, sender, logger, recorder)
	worker.SetPollInterval(cfg.MailPollInterval)
	worker.SetBatchSize(cfg.MailBatchSize)
	srv.Go("mail-worker", worker.Run)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newSender delivers over SMTP when configured and logs messages otherwise.
func newSender(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	if cfg.SMTPAddr == "" {
		logger.Warn("SMTP_ADDR not set, outbound mail is logged instead of sent")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Addr:       cfg.SMTPAddr,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		RequireTLS: cfg.SMTPRequireTLS,
		Timeout:    cfg.SMTPTimeout,
	})
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
