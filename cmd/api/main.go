// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/insurance-backend/internal/admin"
	"github.com/carterperez-dev/insurance-backend/internal/auth"
	"github.com/carterperez-dev/insurance-backend/internal/claim"
	"github.com/carterperez-dev/insurance-backend/internal/config"
	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/health"
	"github.com/carterperez-dev/insurance-backend/internal/ident"
	"github.com/carterperez-dev/insurance-backend/internal/middleware"
	"github.com/carterperez-dev/insurance-backend/internal/payment"
	"github.com/carterperez-dev/insurance-backend/internal/policy"
	"github.com/carterperez-dev/insurance-backend/internal/server"
	"github.com/carterperez-dev/insurance-backend/internal/user"
)

const (
	drainDelay         = 5 * time.Second
	tokenPurgeInterval = time.Hour
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	genKeys := flag.Bool("generate-keys", false, "write a new ES256 key pair to the configured paths and exit")
	flag.Parse()

	if err := run(*configPath, *genKeys); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string, genKeys bool) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	if genKeys {
		if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
			return err
		}
		logger.Info("key pair written",
			"private", cfg.JWT.PrivateKeyPath,
			"public", cfg.JWT.PublicKeyPath,
		)
		return nil
	}

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"driver", cfg.Database.Driver,
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_concurrent_tx", cfg.Database.MaxConcurrentTx,
	)

	if cfg.Database.AutoMigrate {
		if err := core.Migrate(ctx, db.DB); err != nil {
			_ = db.Close() //nolint:errcheck // startup failure path
			return err
		}
		logger.Info("database migrations applied")
	}

	txm := core.NewTxManager(db.DB, cfg.Database.MaxConcurrentTx, cfg.Database.TxWaitTimeout)

	var (
		redisStore  *core.Redis
		redisClient *redis.Client
		locker      core.Locker = core.NewLocalLocker()
	)
	if cfg.Redis.URL != "" {
		redisStore, err = core.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		redisClient = redisStore.Client
		locker = redisStore
		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
	} else {
		logger.Warn("redis not configured, using in-process rate limits and locks")
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	ids := ident.New()

	userSvc := user.NewService(user.NewRepository(db.DB), txm, logger)
	policySvc := policy.NewService(policy.NewRepository(db.DB), txm, ids, cfg.Policy, logger)
	claimSvc := claim.NewService(claim.NewRepository(db.DB), policySvc, txm, ids, logger)
	paymentSvc := payment.NewService(payment.NewRepository(db.DB), policySvc, txm, ids, logger)

	authOpts := []auth.ServiceOption{}
	if redisClient != nil {
		authOpts = append(authOpts, auth.WithBlacklist(redisClient))
	}
	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		txm,
		jwtManager,
		userSvc,
		core.NewPasswordHasher(core.DefaultArgonParams),
		logger,
		authOpts...,
	)

	userHandler := user.NewHandler(userSvc)
	authHandler := auth.NewHandler(authSvc)
	policyHandler := policy.NewHandler(policySvc)
	claimHandler := claim.NewHandler(claimSvc)
	paymentHandler := payment.NewHandler(paymentSvc)

	deps := []health.Dependency{{Name: "database", Checker: db}}
	adminCfg := admin.HandlerConfig{
		DBStats:   db.Stats,
		DBPing:    db.Ping,
		UserCount: userSvc.Count,
		Policies:  admin.StatusCounts(policySvc.StatusCounts),
		Claims:    admin.StatusCounts(claimSvc.StatusCounts),
	}
	if redisStore != nil {
		deps = append(deps, health.Dependency{Name: "redis", Checker: redisStore, Optional: true})
		adminCfg.RedisStats = redisStore.PoolStats
		adminCfg.RedisPing = redisStore.Ping
	}
	healthHandler := health.NewHandler(deps...)
	adminHandler := admin.NewHandler(adminCfg)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			Limit: redis_rate.Limit{
				Rate:   cfg.RateLimit.Requests,
				Burst:  cfg.RateLimit.Burst,
				Period: cfg.RateLimit.Window,
			},
			Scope:    middleware.ScopeGlobal,
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	srv.MountOperational()

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin
	perRole := middleware.RoleRateLimiter(redisClient, map[string]redis_rate.Limit{
		middleware.RoleAdmin: middleware.PerMinute(cfg.RateLimit.Requests*10, cfg.RateLimit.Burst*10),
	}, middleware.PerMinute(cfg.RateLimit.Requests, cfg.RateLimit.Burst))

	writes := middleware.WriteRateLimiter(redisClient, middleware.PerMinute(
		cfg.RateLimit.WriteRequests,
		cfg.RateLimit.WriteBurst,
	))

	authedLimited := func(next http.Handler) http.Handler {
		return authenticator(perRole(writes(next)))
	}

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		userHandler.RegisterRoutes(r, authedLimited)
		policyHandler.RegisterRoutes(r, authedLimited, paymentHandler.RegisterPolicyRoutes)
		claimHandler.RegisterRoutes(r, authedLimited)
		paymentHandler.RegisterRoutes(r, authedLimited)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly,
			userHandler.RegisterAdminRoutes,
			func(r chi.Router) {
				r.Post("/policies/reconcile", policyHandler.Reconcile)
				r.Post("/claims/{claimID}/transition", claimHandler.Transition)
			},
		)
	})

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	if cfg.Reconcile.Enabled {
		reconciler := policy.NewReconciler(policySvc, locker, cfg.Reconcile, logger)
		go reconciler.Run(jobCtx)
	}
	go purgeExpiredTokens(jobCtx, authSvc, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		cancelJobs()
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func purgeExpiredTokens(ctx context.Context, svc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				logger.Error("refresh token purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired refresh tokens purged", "count", n)
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
