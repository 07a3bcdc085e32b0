package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"task-manager/internal/auth"
	"task-manager/internal/config"
	"task-manager/internal/db"
	"task-manager/internal/observability"
	"task-manager/internal/task"
)

type Options struct {
	LoadDotEnv bool
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Logger  *observability.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(options.LoadDotEnv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Env)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	database.SetConnMaxIdleTime(cfg.ConnMaxIdleTime())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.DB.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations_applied", nil)
	}

	handler, err := NewHandler(cfg, database, logger, observability.NewMetrics())
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

// NewHandler wires the repositories, session components and routes on top
// of an open database.
func NewHandler(cfg *config.Config, database *sql.DB, logger *observability.Logger, metrics *observability.Metrics) (http.Handler, error) {
	sameSite, err := config.ParseSameSite(cfg.Cookie.SameSite)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewCodec([]byte(cfg.Auth.SecretKey), cfg.Auth.Algorithm, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	hasher := auth.NewHasher(
		auth.WithTime(cfg.Argon.Time),
		auth.WithMemory(cfg.Argon.MemoryKiB),
		auth.WithThreads(cfg.Argon.Threads),
	)

	users := auth.NewRepository(database)
	sessions := auth.NewManager(users, hasher, codec, observability.NewAuthEventRecorder(logger, metrics))
	authHandler := auth.NewHandler(sessions, auth.CookiePolicy{
		Secure:   cfg.Cookie.Secure,
		SameSite: sameSite,
		Domain:   cfg.Cookie.Domain,
	})
	guard := auth.NewGuard(codec, users)
	loginLimiter := auth.NewLoginRateLimiter(cfg.Auth.LoginRateLimitMax, cfg.LoginRateWindow(), cfg.HTTP.TrustProxyHeaders)

	taskHandler := task.NewHandler(task.NewRepository(database))

	r := chi.NewRouter()
	r.Use(metrics.Middleware)

	r.Get("/health", healthHandler(database))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.With(loginLimiter.Middleware).Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(guard.Middleware)
			r.Get("/me", authHandler.Me)
			r.Route("/task", taskHandler.Routes)
		})
	})

	handler := observability.CORS(cfg.HTTP.CORSOrigins)(r)
	handler = observability.RequestLoggingMiddleware(logger, cfg.HTTP.TrustProxyHeaders, handler)
	return observability.RecoverMiddleware(logger, handler), nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
