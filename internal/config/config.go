package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Google Places provider.
	PlacesAPIKey    string
	PlacesEnabled   bool
	PlacesTimeout   time.Duration
	PlacesCacheSize int

	// Known-venues store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Resolver tuning.
	MatchRadiusMeters  float64
	NearbyRadiusMeters float64

	// Session lifecycle.
	SessionTTL    time.Duration
	SweepInterval time.Duration

	RateLimitPerMinute int

	// Venue-confirmed event publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	placesTimeout, err := parseDuration("PLACES_TIMEOUT", 8*time.Second)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDuration("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parseDuration("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	placesKey := os.Getenv("GOOGLE_PLACES_API_KEY")
	placesEnabled := placesKey != ""
	if v := os.Getenv("PLACES_ENABLED"); v != "" {
		placesEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PlacesAPIKey:    placesKey,
		PlacesEnabled:   placesEnabled,
		PlacesTimeout:   placesTimeout,
		PlacesCacheSize: parsePositiveInt("PLACES_CACHE_SIZE", 1000),

		RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseNonNegativeInt("REDIS_DB", 0),

		MatchRadiusMeters:  parsePositiveFloat("MATCH_RADIUS_M", 50),
		NearbyRadiusMeters: parsePositiveFloat("NEARBY_RADIUS_M", 100),

		SessionTTL:    sessionTTL,
		SweepInterval: sweepInterval,

		RateLimitPerMinute: parsePositiveInt("RATE_LIMIT_PER_MIN", 30),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "venue-confirmed"),
	}

	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	if cfg.PlacesEnabled && cfg.PlacesAPIKey == "" {
		return nil, errors.New("PLACES_ENABLED is true but GOOGLE_PLACES_API_KEY is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func parseNonNegativeInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func parsePositiveFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
