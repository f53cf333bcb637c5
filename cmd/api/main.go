package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"doacao/internal/adapter/repo"
	"doacao/internal/donations"
	"doacao/internal/events"
	"doacao/internal/exchange"
	"doacao/internal/gateway/stripeapi"
	"doacao/internal/http/handlers"
	httpapi "doacao/internal/http/httpapi"
	"doacao/internal/infra"
	"doacao/internal/infra/credentials"
	"doacao/internal/infra/geoip"
	"doacao/internal/middleware"
	"doacao/internal/mode"
	"doacao/internal/notify"
	"doacao/internal/submission"
	"doacao/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if err := cfg.RequireAdminSecret(); err != nil {
		logger.Fatal().Err(err).Msg("api: invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	if err := credentials.NewStore(runner).FillConfig(ctx, cfg); err != nil {
		logger.Warn().Err(err).Msg("api: failed to load stored credentials")
	}

	modes := mode.FromConfig(cfg)
	gw := stripeapi.NewClient(stripeapi.Options{
		SecretKey: modes.SecretKey(),
		BaseURL:   cfg.GatewayBaseURL,
		Timeout:   cfg.GatewayTimeout,
		Logger:    &logger,
	})
	if !gw.HasCredentials() {
		logger.Warn().Str("mode", string(modes.Mode())).Msg("api: gateway secret key missing, donations will be rejected")
	}

	boletos := repo.NewRecurringBoletoRepository(runner)
	ledger := repo.NewGatewayEventRepository(runner)
	mailer := notify.FromConfig(cfg, &logger)

	publisher := events.Connect(cfg.RabbitMQURL, cfg.EventsExchange, &logger)
	defer publisher.Close()

	donationSvc := submission.NewService(submission.Deps{
		Gateway:  gw,
		Keys:     modes,
		Rates:    exchange.FromConfig(cfg, &logger),
		Ledger:   boletos,
		Notifier: mailer,
		Features: submission.Features{
			Boleto:  cfg.EnableBoleto,
			Monthly: cfg.EnableMonthly,
			Annual:  cfg.EnableAnnual,
		},
		Logger: &logger,
	})
	webhookSvc := webhook.NewService(webhook.Deps{
		Verifier:  gw,
		Secrets:   modes,
		Ledger:    ledger,
		Boletos:   boletos,
		Notifier:  mailer,
		Publisher: publisher,
		Logger:    &logger,
	})
	reports := donations.NewAggregator(boletos, ledger, gw, modes, &logger)

	var lookup middleware.CountryLookup
	countries, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip database unavailable, relying on headers")
	} else if countries != nil {
		defer countries.Close()
		lookup = countries.CountryCode
	}

	app := &handlers.App{
		Donations: donationSvc,
		Webhooks:  webhookSvc,
		Reports:   reports,
		Statuses:  reports.Statuses(),
		DB:        pool,
		Logger:    &logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AdminSecret:     cfg.AdminJWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   middleware.LocaleEnglish,
		CountryLookup:   lookup,
	})

	logger.Info().Str("mode", string(modes.Mode())).Msg("api: starting")
	if err := infra.NewHTTPServer(cfg, router, logger).Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api: http server failed")
	}
	logger.Info().Msg("api: server stopped")
}
