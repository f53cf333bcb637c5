package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"doacao/internal/adapter/repo"
	"doacao/internal/boleto"
	"doacao/internal/domain"
	"doacao/internal/events"
	"doacao/internal/gateway/stripeapi"
	"doacao/internal/infra"
	"doacao/internal/infra/credentials"
	"doacao/internal/mode"
	"doacao/internal/notify"
)

type sweepWorker struct {
	ctx       context.Context
	scheduler *boleto.Scheduler
	interval  time.Duration
	logger    infra.Logger
}

func main() {
	var onceFlag bool
	flag.BoolVar(&onceFlag, "once", false, "run a single recurring boleto sweep and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	if err := credentials.NewStore(runner).FillConfig(ctx, cfg); err != nil {
		logger.Warn().Err(err).Msg("worker: failed to load stored credentials")
	}

	modes := mode.FromConfig(cfg)
	gw := stripeapi.NewClient(stripeapi.Options{
		SecretKey: modes.SecretKey(),
		BaseURL:   cfg.GatewayBaseURL,
		Timeout:   cfg.GatewayTimeout,
		Logger:    &logger,
	})
	if !gw.HasCredentials() {
		logger.Fatal().Str("mode", string(modes.Mode())).Msg("worker: gateway secret key missing")
	}

	publisher := events.Connect(cfg.RabbitMQURL, cfg.EventsExchange, &logger)
	defer publisher.Close()

	w := &sweepWorker{
		ctx: ctx,
		scheduler: boleto.NewScheduler(boleto.Deps{
			Ledger:    repo.NewRecurringBoletoRepository(runner),
			Leases:    repo.NewLeaseRepository(runner),
			Gateway:   gw,
			Notifier:  notify.FromConfig(cfg, &logger),
			Publisher: publisher,
			Logger:    &logger,
			LeaseTTL:  cfg.SweepLease,
		}),
		interval: cfg.SweepInterval,
		logger:   logger,
	}

	if onceFlag {
		if err := w.sweep(); err != nil {
			logger.Fatal().Err(err).Msg("worker: sweep failed")
		}
		return
	}

	if err := w.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run sweeps once at start and then on every tick until the context ends.
// Sweep errors are logged; the next tick retries.
func (w *sweepWorker) Run() error {
	w.logger.Info().Dur("interval", w.interval).Msg("worker: started")
	if err := w.sweep(); err != nil {
		w.logger.Error().Err(err).Msg("worker: sweep failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-ticker.C:
			if err := w.sweep(); err != nil {
				w.logger.Error().Err(err).Msg("worker: sweep failed")
			}
		}
	}
}

func (w *sweepWorker) sweep() error {
	res, err := w.scheduler.GeneratePendingBoletos(w.ctx)
	if errors.Is(err, domain.ErrLeaseHeld) {
		w.logger.Info().Msg("worker: another sweep holds the lease, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	w.logger.Info().
		Int("due", res.Due).
		Int("issued", res.Issued).
		Int("failed", res.Failed).
		Msg("worker: sweep finished")
	return nil
}
