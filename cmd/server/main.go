package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"anoa.com/yamdb/internal/bootstrap"
	"anoa.com/yamdb/internal/config"
	"anoa.com/yamdb/internal/logging"
	searchService "anoa.com/yamdb/internal/modules/search/service"
	"anoa.com/yamdb/internal/server"
	"anoa.com/yamdb/pkg/database"
	"anoa.com/yamdb/pkg/mailer"
	"anoa.com/yamdb/pkg/storage"
	"anoa.com/yamdb/pkg/validator"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := validator.Register(); err != nil {
		logging.Fatal().Err(err).Msg("failed to register validators")
	}

	db, err := database.Connect(cfg.PostgresDSN())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := bootstrap.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("migration failed")
	}
	if err := bootstrap.SeedSuperuser(db, cfg.SuperuserUsername, cfg.SuperuserEmail); err != nil {
		logging.Fatal().Err(err).Msg("failed to seed superuser")
	}

	deps := server.Deps{
		Config: cfg,
		DB:     db,
		Redis:  connectRedis(cfg.RedisURL),
		Search: connectSearch(cfg.MeiliSearchHost, cfg.MeiliMasterKey),
		Mailer: mailer.NewLogSender(cfg.MailFrom),
	}

	images, err := storage.NewCloudinaryStorage(storage.CloudinaryConfig{
		URL:       cfg.CloudinaryURL,
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	})
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		logging.Warn().Msg("cloudinary not configured, cover uploads disabled")
	case err != nil:
		logging.Fatal().Err(err).Msg("failed to initialize cloudinary storage")
	default:
		deps.Images = images
	}

	srv, err := server.NewServer(deps)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil {
			logging.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	if deps.Redis != nil {
		_ = deps.Redis.Close()
	}
}

// connectRedis returns nil when REDIS_URL is unset or unreachable. Rate
// limits and the live rating feed are disabled without it.
func connectRedis(url string) *redis.Client {
	if url == "" {
		logging.Warn().Msg("REDIS_URL not set, rate limiting and rating feed disabled")
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logging.Warn().Err(err).Msg("redis unreachable, rate limiting and rating feed disabled")
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// connectSearch returns nil when MEILISEARCH_HOST is unset; title search
// then falls back to a name filter.
func connectSearch(host, apiKey string) *searchService.Service {
	if host == "" {
		logging.Warn().Msg("MEILISEARCH_HOST not set, title search uses database filter")
		return nil
	}

	svc := searchService.New(host, apiKey)
	if err := svc.EnsureIndex(); err != nil {
		logging.Warn().Err(err).Msg("failed to configure search index settings")
	}
	return svc
}
