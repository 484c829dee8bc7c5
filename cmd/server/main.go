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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/edu-cms/pkg/educms"
	"github.com/tendant/edu-cms/pkg/educms/api"
	"github.com/tendant/edu-cms/pkg/educms/config"
)

// ProcessConfig holds the settings that belong to the executable rather
// than to the service wiring in package config.
type ProcessConfig struct {
	JWTSecret       string        `env:"JWT_SECRET" env-required:"true"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" env-default:"24h"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	EnvPrefix       string        `env:"EDUCMS_ENV_PREFIX" env-default:""`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	var proc ProcessConfig
	if err := cleanenv.ReadEnv(&proc); err != nil {
		slog.Error("Failed to read process configuration", "err", err)
		os.Exit(1)
	}

	serverConfig, err := config.Load(config.WithEnv(proc.EnvPrefix))
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(proc.LogLevel, serverConfig.Environment)
	slog.SetDefault(logger)

	ctx := context.Background()
	rt, err := serverConfig.BuildService(ctx, educms.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	auth, err := api.NewAuth(proc.JWTSecret, proc.TokenTTL)
	if err != nil {
		logger.Error("Failed to configure authentication", "err", err)
		os.Exit(1)
	}
	handler := api.NewHandler(rt.Service, rt.Media, auth, logger)

	httpServer := &http.Server{
		Addr:              ":" + serverConfig.Port,
		Handler:           routes(handler, serverConfig, proc.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("educms server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"media", serverConfig.Media.Type,
			"events", serverConfig.RedisURL != "")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), proc.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	logger.Info("Server exiting")
}

func routes(h *api.Handler, cfg *config.ServerConfig, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	// CORS for development
	if cfg.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}
				next.ServeHTTP(w, r)
			})
		})
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Mount("/api/v1", h.Routes())
	return r
}

func newLogger(level, environment string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
