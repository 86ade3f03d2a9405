package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	accountrepo "eduplatform/backend/internal/account/repository"
	"eduplatform/backend/internal/audit"
	auditrepo "eduplatform/backend/internal/audit/repository"
	"eduplatform/backend/internal/config"
	coursehandler "eduplatform/backend/internal/course/handler"
	courserepo "eduplatform/backend/internal/course/repository"
	courseservice "eduplatform/backend/internal/course/service"
	"eduplatform/backend/internal/db"
	enrollment "eduplatform/backend/internal/enrollment/service"
	healthhandler "eduplatform/backend/internal/health/handler"
	identityhandler "eduplatform/backend/internal/identity/handler"
	identityservice "eduplatform/backend/internal/identity/service"
	"eduplatform/backend/internal/logger"
	"eduplatform/backend/internal/platform/lock"
	"eduplatform/backend/internal/platform/rbac"
	"eduplatform/backend/internal/policy/engine"
	policyrepo "eduplatform/backend/internal/policy/repository"
	progress "eduplatform/backend/internal/progress/service"
	quizhandler "eduplatform/backend/internal/quiz/handler"
	quizrepo "eduplatform/backend/internal/quiz/repository"
	quizservice "eduplatform/backend/internal/quiz/service"
	"eduplatform/backend/internal/security"
	"eduplatform/backend/internal/server"
	"eduplatform/backend/internal/server/middleware"
	"eduplatform/backend/internal/telemetry"
	telemetryotel "eduplatform/backend/internal/telemetry/otel"
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

	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, cfg.OTelServiceName, cfg.OTelInsecure)
	if err != nil {
		log.Fatal().Err(err).Msg("otel providers")
	}
	providers.SetGlobal()
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)
	metrics, err := telemetryotel.NewEnrollmentMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("enrollment metrics")
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer pool.Close()

	secret, err := security.LoadSecret(cfg.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("jwt secret")
	}
	tokens, err := security.NewTokenService(secret, cfg.JWTIssuer, cfg.TokenTTL())
	if err != nil {
		log.Fatal().Err(err).Msg("token service")
	}

	locker, closeLocker := newLocker(cfg, log)
	defer closeLocker()

	decider, policyChecker := newDecider(ctx, cfg, pool, log)

	accounts := accountrepo.NewPostgresRepository(pool)
	courses := courserepo.NewPostgresRepository(pool)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(pool), log,
		audit.WithEmitter(emitter),
		audit.WithIPExtractor(middleware.ClientIPFrom),
	)

	authSvc := identityservice.NewAuthService(accounts, security.NewHasher(cfg.BcryptCost), tokens, locker, log)
	tracker := progress.NewTracker(accounts, locker, log)
	courseSvc := courseservice.NewCourseService(courses, accounts, locker, log)
	quizSvc := quizservice.NewQuizService(quizrepo.NewPostgresRepository(pool), courses, log)
	coordinator := enrollment.NewCoordinator(accounts, courses, locker, log,
		enrollment.WithRecorder(metrics),
		enrollment.WithAuditLogger(auditLogger),
	)

	validate := validator.New(validator.WithRequiredStructEnabled())
	handler := server.NewRouter(server.Deps{
		Authenticator: middleware.NewAuthenticator(tokens, accounts, cfg.PublicPathList(), log),
		Decider:       decider,
		Audit:         auditLogger,
		Emitter:       emitter,
		CORSOrigins:   cfg.CORSOrigins(),
		Log:           log,
	},
		identityhandler.New(authSvc, tracker, validate, log),
		coursehandler.New(courseSvc, coordinator, validate, log),
		quizhandler.New(quizSvc, validate, log),
		healthhandler.NewServer(pool, policyChecker, log),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("policy_engine", cfg.PolicyEngine).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shut down")
	}
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("HTTP server stopped")
}

// newLocker returns the Redis lock when REDIS_ADDR is set, otherwise the
// in-process lock, which is only correct with a single server instance.
func newLocker(cfg *config.Config, log zerolog.Logger) (lock.Locker, func()) {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set; account locks are process-local")
		return lock.NewLocal(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	l, err := lock.NewRedis(client, cfg.LockTTLDuration(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("redis lock")
	}
	return l, func() { _ = client.Close() }
}

// newDecider returns the authorization decider for POLICY_ENGINE and the
// health checker for it, which is nil for the static grant table.
func newDecider(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log zerolog.Logger) (rbac.Decider, healthhandler.PolicyChecker) {
	if cfg.PolicyEngine != config.PolicyEngineOPA {
		return rbac.NewPolicy(nil), nil
	}
	opa, err := engine.NewOPAEvaluator(ctx, rbac.DefaultGrants(), policyrepo.NewPostgresRepository(pool), log)
	if err != nil {
		log.Fatal().Err(err).Msg("opa policy engine")
	}
	return opa, opa
}
