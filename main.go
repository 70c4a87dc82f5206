package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mike-mible/cjic/ai"
	"github.com/Mike-mible/cjic/cache"
	"github.com/Mike-mible/cjic/config"
	"github.com/Mike-mible/cjic/database"
	"github.com/Mike-mible/cjic/database/memory"
	"github.com/Mike-mible/cjic/handlers"
	"github.com/Mike-mible/cjic/logging"
	"github.com/Mike-mible/cjic/middleware"
	"github.com/Mike-mible/cjic/notify"
	"github.com/Mike-mible/cjic/policy"
	"github.com/Mike-mible/cjic/services"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logging.NewSlogLogger(logging.InitLogger(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	p, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis backs revocation, drafts and rate limiting when configured
	var (
		rdb     *redis.Client
		revoker services.TokenRevoker = cache.NewMemoryRevoker()
		drafts  services.DraftBackend = cache.NewMemoryDrafts(cfg.DraftTTL)
		memLim  *middleware.MemoryLimiter
		limiter middleware.Limiter
	)
	if cfg.RedisAddr != "" {
		if rdb, err = cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword); err != nil {
			return err
		}
		defer rdb.Close()
		revoker = cache.NewRedisRevoker(rdb)
		drafts = cache.NewRedisDrafts(rdb, cfg.DraftTTL)
		limiter = middleware.NewRedisLimiter(rdb, "ratelimit", cfg.RateLimitPerMinute, time.Minute)
		log.Info(ctx, "redis connected", "addr", cfg.RedisAddr)
	} else {
		memLim = middleware.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
		limiter = memLim
	}

	var notifier services.HazardNotifier = notify.NewLogNotifier(log)
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
		log.Info(ctx, "hazard notifications enabled", "exchange", cfg.AMQPExchange)
	}

	var generator services.TextGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		generator = gemini
	} else {
		log.Warn(ctx, "GEMINI_API_KEY not set, AI insights disabled")
	}

	deps := services.Deps{Store: store, Policy: p, Logger: log, Timeout: cfg.StoreTimeout}
	jwtManager := middleware.NewJWTManager(cfg.Secret(), cfg.TokenTTL)
	draftService := services.NewDraftService(drafts, log)

	h := handlers.New(log)
	h.Users = services.NewUserService(deps, jwtManager)
	h.Sessions = services.NewSessionService(deps, revoker)
	h.SiteLogs = services.NewSiteLogService(deps, draftService)
	h.Safety = services.NewSafetyService(deps, draftService, notifier)
	h.Sites = services.NewSiteService(deps)
	h.Drafts = draftService
	h.Analytics = services.NewAnalyticsService(deps, services.NewInsightService(generator, log))
	h.Bootstrap = services.NewBootstrapService(deps)

	authn := middleware.NewAuthenticator(jwtManager, h.Users, h.Sessions, p, log)
	router := handlers.NewRouter(h, authn)
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLog(log))
	router.Use(middleware.RateLimit(limiter, time.Minute, log))

	// Configure CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			middleware.ImpersonateHeader,
			middleware.RequestIDHeader,
		},
		ExposedHeaders: []string{
			"Link",
			"Retry-After",
			middleware.RequestIDHeader,
		},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
		defer cancel()
		log.Info(gctx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if memLim != nil {
		g.Go(func() error {
			memLim.RunCleanup(gctx, 5*time.Minute)
			return nil
		})
	}
	return g.Wait()
}

// openStore returns the Postgres store, or the in-process one when
// DATABASE_URL is "memory".
func openStore(ctx context.Context, cfg config.Config, log logging.Logger) (services.Store, func(), error) {
	if cfg.DatabaseURL == config.MemoryDatabase {
		log.Warn(ctx, "using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info(ctx, "database connected and migrated")
	return database.NewStore(db), func() { db.Close() }, nil
}
