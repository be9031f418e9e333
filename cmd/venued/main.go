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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mealtrail/venue-resolver/internal/adapter/googleplaces"
	httpadapter "github.com/mealtrail/venue-resolver/internal/adapter/http"
	kafkaadapter "github.com/mealtrail/venue-resolver/internal/adapter/kafka"
	"github.com/mealtrail/venue-resolver/internal/adapter/redisstore"
	"github.com/mealtrail/venue-resolver/internal/config"
	"github.com/mealtrail/venue-resolver/internal/domain"
	"github.com/mealtrail/venue-resolver/internal/observability"
	"github.com/mealtrail/venue-resolver/internal/resolver"
	"github.com/mealtrail/venue-resolver/internal/session"
)

func main() {
	// Optional local overrides; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Places provider (feature-flagged via PLACES_ENABLED / PLACES_API_KEY).
	var directory domain.Directory
	if cfg.PlacesEnabled {
		client := googleplaces.NewClient(cfg.PlacesAPIKey, cfg.PlacesTimeout, logger, metrics)
		directory = googleplaces.NewCachedDirectory(client, cfg.PlacesCacheSize, metrics)
		metrics.ProviderEnabled.Set(1)
		logger.Info("places provider enabled", "cache_size", cfg.PlacesCacheSize, "timeout", cfg.PlacesTimeout)
	} else {
		metrics.ProviderEnabled.Set(0)
		logger.Info("places provider disabled, resolving against saved venues only")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := redisstore.New(redisClient, nil, logger)

	var sink resolver.EventSink
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sink = publisher
		logger.Info("venue event publishing enabled", "topic", cfg.KafkaTopic)
	}

	registry := session.NewRegistry(func(userID string) *resolver.Resolver {
		return resolver.New(resolver.Config{
			UserID:             userID,
			Directory:          directory,
			Store:              store,
			Sink:               sink,
			Logger:             logger,
			Metrics:            metrics,
			MatchRadiusMeters:  cfg.MatchRadiusMeters,
			NearbyRadiusMeters: cfg.NearbyRadiusMeters,
		})
	}, cfg.SessionTTL, nil, logger, metrics)

	limiter := httpadapter.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, nil)
	ready := httpadapter.ReadinessFunc(store.Ping)
	srv := httpadapter.NewServer(cfg.HTTPAddr, registry, ready, limiter, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go registry.Run(ctx, cfg.SweepInterval)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("shutdown complete")
}
