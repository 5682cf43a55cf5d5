package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"stockpilot/backend/internal/assistant"
	"stockpilot/backend/internal/cache"
	"stockpilot/backend/internal/config"
	"stockpilot/backend/internal/httpapi"
	"stockpilot/backend/internal/invite"
	"stockpilot/backend/internal/logger"
	"stockpilot/backend/internal/metrics"
	"stockpilot/backend/internal/service"
	"stockpilot/backend/internal/store"
	"stockpilot/backend/internal/store/memory"
	pgstore "stockpilot/backend/internal/store/postgres"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "stockpilot-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := context.Background()

	if err := validateSecurityConfig(*cfg); err != nil {
		logg.Error(ctx, "invalid security configuration", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "server stopped with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)
	defer func() {
		for _, closeFn := range closers {
			err = multierr.Append(err, closeFn())
		}
	}()

	var repo store.Repository
	var ready func(context.Context) error
	if cfg.DB.URL != "" {
		pg, err := pgstore.New(startCtx, cfg.DB.URL, pgstore.Options{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.DB.AutoMigrate {
			if err := pg.Migrate(startCtx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		repo = pg
		ready = pg.Ping
		logg.Info(logg.WithField(ctx, "repository", "postgres"), "repository ready")
	} else {
		repo = memory.NewSeeded()
		logg.Info(logg.WithField(ctx, "repository", "memory"), "repository ready")
		if memory.UsesDefaultPasswords() {
			logg.Warn(ctx, "demo accounts use default passwords; set SEED_OWNER_PASSWORD and SEED_EMPLOYEE_PASSWORD")
		}
	}

	var sessions cache.SessionCache = cache.NewMemorySessionCache()
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisSessionCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisCache.Ping(startCtx); err != nil {
			logg.Error(ctx, "redis unavailable, keeping assistant sessions in memory", err)
			_ = redisCache.Close()
		} else {
			sessions = redisCache
			closers = append(closers, redisCache.Close)
			logg.Info(logg.WithField(ctx, "sessions", "redis"), "assistant session cache ready")
		}
	}

	var mailer invite.Mailer = invite.NewLogMailer(logg, cfg.Mail.InviteBaseURL)
	if cfg.Mail.SMTPHost != "" {
		mailer = invite.NewSMTPMailer(invite.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
			BaseURL:  cfg.Mail.InviteBaseURL,
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	loc := cfg.App.Location()

	var model assistant.ChatModel
	if cfg.Assistant.APIKey != "" {
		gemini, err := assistant.NewGeminiModel(startCtx, cfg.Assistant.APIKey, cfg.Assistant.Model, cfg.Assistant.Timeout)
		if err != nil {
			logg.Error(ctx, "assistant model unavailable, assistant disabled", err)
		} else {
			model = gemini
		}
	} else {
		logg.Warn(ctx, "GEMINI_API_KEY is not set; assistant disabled")
	}
	bridge := assistant.NewBridge(model, repo, sessions, assistant.Options{
		SessionTTL: cfg.Redis.SessionTTL,
		Location:   loc,
		Logger:     logg,
		Metrics:    m,
	})

	svc := service.New(repo, service.Options{
		Assistant: bridge,
		Mailer:    mailer,
		Logger:    logg,
		Metrics:   m,
		Location:  loc,
	})
	auth := httpapi.NewAuthManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, svc)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.App.AllowedOrigin,
		Logger:        logg,
		Metrics:       m,
		Gatherer:      registry,
		Ready:         ready,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Assistant replies block on the model.
		WriteTimeout: cfg.Assistant.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", cfg.Address()), "stockpilot backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logg.Info(ctx, "server stopped")
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.Auth.Secret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.App.IsProd() && cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when APP_ENV is production")
	}
	return nil
}
