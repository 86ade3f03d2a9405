// reconcile recomputes course enrollment counters from account enrolled sets.
// RECONCILE_INTERVAL=0 runs one pass; any other duration repeats until SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	accountrepo "eduplatform/backend/internal/account/repository"
	"eduplatform/backend/internal/config"
	courserepo "eduplatform/backend/internal/course/repository"
	"eduplatform/backend/internal/db"
	"eduplatform/backend/internal/logger"
	"eduplatform/backend/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).Fatal().Err(err).Msg("config")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Development: cfg.IsDevelopment()})
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer pool.Close()

	r := reconcile.New(accountrepo.NewPostgresRepository(pool), courserepo.NewPostgresRepository(pool), log)

	every := cfg.ReconcileEvery()
	if every == 0 {
		if !runOnce(ctx, r, log) {
			os.Exit(1)
		}
		return
	}

	log.Info().Dur("interval", every).Msg("reconcile: running on interval")
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		runOnce(ctx, r, log)
		select {
		case <-ctx.Done():
			log.Info().Msg("reconcile: stopped")
			return
		case <-ticker.C:
		}
	}
}

func runOnce(ctx context.Context, r *reconcile.Reconciler, log zerolog.Logger) bool {
	rep, err := r.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconcile: pass failed")
		return false
	}
	log.Info().Int("courses", rep.Courses).Int("corrected", rep.Corrected).Int("orphans", len(rep.Orphans)).
		Msg("reconcile: pass complete")
	return true
}
