package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelhub/db/migrations"
	"modelhub/internal/api"
	"modelhub/internal/auth"
	"modelhub/internal/config"
	"modelhub/internal/database"
	"modelhub/internal/logger"
	"modelhub/internal/ratelimit"
	"modelhub/internal/service"
	"modelhub/internal/storage"
	"modelhub/internal/websocket"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("server", "info").Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New("server", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := pgxpool.New(ctx, cfg.DB.Source)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create database pool")
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Msg("connected to database")

	sqlDB := stdlib.OpenDBFromPool(dbpool)
	if err := migrations.Migrate(sqlDB); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	sqlDB.Close()

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize storage")
	}
	gateway, err := storage.NewGateway(backend, cfg.Storage.MaxUploadBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage gateway")
	}
	log.Info().Str("driver", cfg.Storage.Driver).Int64("max_upload_bytes", gateway.MaxBytes()).Msg("storage ready")

	limiter, closeLimiter := newLimiter(ctx, cfg, log)
	defer closeLimiter()

	wsHub := websocket.NewHub(log.GetChildLogger())
	go wsHub.Run(ctx)

	store := database.NewStore(dbpool, wsHub)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	services, err := service.NewServices(store, gateway, tokens, cfg.DB.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}

	server := api.NewServer(cfg, services, store, gateway, wsHub, limiter, log)
	httpServer := server.HTTPServer()

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.Storage.Driver == config.StorageDriverMinio {
		return storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.Minio.Endpoint,
			AccessKey: cfg.Storage.Minio.AccessKey,
			SecretKey: cfg.Storage.Minio.SecretKey,
			Bucket:    cfg.Storage.Minio.Bucket,
			Secure:    cfg.Storage.Minio.Secure,
		})
	}
	return storage.NewLocalStorage(cfg.Storage.Path)
}

// newLimiter uses Redis when it is configured and reachable, and an in
// process limiter otherwise.
func newLimiter(ctx context.Context, cfg *config.Config, log *logger.Logger) (ratelimit.Limiter, func()) {
	if cfg.Redis.Addr == "" {
		return ratelimit.NewLocalLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, using in-process rate limiter")
		_ = rdb.Close()
		return ratelimit.NewLocalLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window), func() {}
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("rate limiter backed by redis")
	return ratelimit.NewRedisLimiter(rdb, "auth", cfg.RateLimit.Requests, cfg.RateLimit.Window), func() { _ = rdb.Close() }
}
