package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"taskboard/internal/auth"
	"taskboard/internal/db"
	"taskboard/internal/maintenance"
	"taskboard/internal/observability"
	"taskboard/internal/task"
	"taskboard/internal/user"
)

const minSecretLen = 32

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	accessSecret, err := mustSecret("JWT_ACCESS_SECRET")
	if err != nil {
		return nil, err
	}
	refreshSecret, err := mustSecret("JWT_REFRESH_SECRET")
	if err != nil {
		return nil, err
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	accessTTL := envLifetimeOrDefault("JWT_ACCESS_EXPIRES_IN", 15*time.Minute)
	refreshTTL := envLifetimeOrDefault("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour)

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	userRepo := auth.NewUserRepository(database)
	tokenRepo := auth.NewRefreshTokenRepository(database)
	issuer := auth.NewTokenIssuer(accessSecret, refreshSecret, accessTTL, refreshTTL)
	authService := auth.NewService(userRepo, tokenRepo, auth.NewArgon2Hasher(), issuer)
	authHandler := auth.NewHandler(authService)

	if err := authService.BootstrapAdmin(context.Background(), os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	taskRepo := task.NewRepository(database)
	taskHandler := task.NewHandler(taskRepo)
	userHandler := user.NewHandler(userRepo)

	cleanupHandler := maintenance.NewCleanupHandler(
		tokenRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("REFRESH_TOKEN_RETENTION_DAYS", 14),
		envIntOrDefault("TOKEN_CLEANUP_BATCH_SIZE", 500),
	)

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	authed := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(issuer, h)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(issuer, auth.RequireRole(auth.RoleAdmin, h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.Handle("GET /auth/me", authed(authHandler.Me))

	mux.Handle("GET /tasks", authed(taskHandler.List))
	mux.Handle("POST /tasks", authed(taskHandler.Create))
	mux.Handle("GET /tasks/{id}", authed(taskHandler.Get))
	mux.Handle("PUT /tasks/{id}", authed(taskHandler.Update))
	mux.Handle("DELETE /tasks/{id}", authed(taskHandler.Delete))

	mux.Handle("GET /users/{id}", authed(userHandler.GetUser))
	mux.Handle("GET /admin/users", adminOnly(userHandler.ListUsers))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	var handler http.Handler = mux
	handler = observability.SecurityHeadersMiddleware(handler)
	handler = observability.CORSMiddleware(strings.TrimSpace(os.Getenv("FRONTEND_URL")), handler)
	handler = observability.RequestLoggingMiddleware(logger, handler)
	handler = observability.RecoverMiddleware(logger, handler)

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
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

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func mustSecret(name string) (string, error) {
	value, err := mustEnv(name)
	if err != nil {
		return "", err
	}
	if len(value) < minSecretLen {
		return "", fmt.Errorf("%s must be at least %d characters", name, minSecretLen)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envLifetimeOrDefault(name string, fallback time.Duration) time.Duration {
	return ParseLifetime(os.Getenv(name), fallback)
}

// ParseLifetime reads a token lifetime string such as "15m", "12h" or "7d".
// time.ParseDuration has no day unit, so a trailing d is handled explicitly.
// Absent or unparseable values fall back.
func ParseLifetime(value string, fallback time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}

	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil || days <= 0 {
			return fallback
		}
		return time.Duration(days) * 24 * time.Hour
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
