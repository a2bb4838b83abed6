package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"licensegate/internal/cache"
	"licensegate/internal/config"
	"licensegate/internal/database"
	"licensegate/internal/handler"
	"licensegate/internal/redis"
	"licensegate/internal/repository"
	"licensegate/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Run wires the whole service and blocks until shutdown. Migrations and
// seeding finish before the listener opens, so no request can observe a
// partially migrated schema.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogging(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	tokenRepo := repository.NewTokenRepository(db)

	tokenCache := cache.NewNoopTokenCache()
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer redisClient.Close()
		if err := redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		tokenCache = cache.NewTokenCache(redisClient.Client)
		log.Info().Msg("Token cache enabled")
	}

	tokenService := service.NewTokenService(tokenRepo, tokenCache)

	if err := tokenService.Seed(ctx, cfg.SeedTokens, cfg.SeedMaxUsers); err != nil {
		return fmt.Errorf("failed to seed tokens: %w", err)
	}

	router := NewRouter(RouterConfig{
		TokenHandler:  handler.NewTokenHandler(tokenService),
		HealthHandler: handler.NewHealthHandler(db),
	})

	server := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func configureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
