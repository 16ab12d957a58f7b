package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/couchcryptid/region-sentinel/internal/geo"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Regions        []domain.Region
	SyncInterval   time.Duration
	PruneStale     bool
	HandshakeDelay time.Duration
	H3Resolution   int

	// Overpass source configuration.
	OverpassURL       string
	OverpassTimeout   time.Duration
	OverpassRate      float64
	OverpassBurst     int
	OverpassCacheSize int
	OverpassCacheTTL  time.Duration

	// Redis store configuration. An empty address selects the in-memory store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Kafka notification configuration.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	regions, err := ParseRegions(os.Getenv("REGIONS"))
	if err != nil {
		return nil, fmt.Errorf("invalid REGIONS: %w", err)
	}

	syncInterval, err := parsePositiveDuration("SYNC_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}
	overpassTimeout, err := parsePositiveDuration("OVERPASS_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("OVERPASS_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}
	handshakeDelay, err := time.ParseDuration(sharedcfg.EnvOrDefault("HANDSHAKE_DELAY", "0s"))
	if err != nil || handshakeDelay < 0 {
		return nil, errors.New("invalid HANDSHAKE_DELAY")
	}

	overpassRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("OVERPASS_RATE", "1"), 64)
	if err != nil || overpassRate < 0 {
		return nil, errors.New("invalid OVERPASS_RATE")
	}
	overpassBurst, err := parseNonNegativeInt("OVERPASS_BURST", "1")
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseNonNegativeInt("OVERPASS_CACHE_SIZE", "64")
	if err != nil {
		return nil, err
	}
	redisDB, err := parseNonNegativeInt("REDIS_DB", "0")
	if err != nil {
		return nil, err
	}
	h3Res, err := parseNonNegativeInt("H3_RESOLUTION", "9")
	if err != nil {
		return nil, err
	}
	if h3Res > 15 {
		return nil, errors.New("invalid H3_RESOLUTION: must be between 0 and 15")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Regions:        regions,
		SyncInterval:   syncInterval,
		PruneStale:     os.Getenv("SYNC_PRUNE_STALE") == "true",
		HandshakeDelay: handshakeDelay,
		H3Resolution:   h3Res,

		OverpassURL:       sharedcfg.EnvOrDefault("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		OverpassTimeout:   overpassTimeout,
		OverpassRate:      overpassRate,
		OverpassBurst:     overpassBurst,
		OverpassCacheSize: cacheSize,
		OverpassCacheTTL:  cacheTTL,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		RedisPrefix:   sharedcfg.EnvOrDefault("REDIS_PREFIX", "region-sentinel:"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "region-synced"),
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// ParseRegions parses "id:lat:lng:radius" entries separated by ";". Blank
// entries are ignored; duplicate ids are rejected.
func ParseRegions(s string) ([]domain.Region, error) {
	var regions []domain.Region
	seen := make(map[string]bool)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("region %q: want id:lat:lng:radius", entry)
		}
		id := strings.TrimSpace(parts[0])
		if id == "" {
			return nil, fmt.Errorf("region %q: empty id", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("region %q: duplicate id", id)
		}
		seen[id] = true

		var nums [3]float64
		for i, p := range parts[1:] {
			n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("region %q: %w", id, err)
			}
			nums[i] = n
		}
		lat, lng, radius := nums[0], nums[1], nums[2]
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return nil, fmt.Errorf("region %q: coordinate out of range", id)
		}
		if radius <= 0 {
			return nil, fmt.Errorf("region %q: radius must be positive", id)
		}
		regions = append(regions, domain.Region{ID: id, Center: geo.Coordinate{Lat: lat, Lng: lng}, RadiusMiles: radius})
	}
	return regions, nil
}

func parsePositiveDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parseNonNegativeInt(name, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(name, def))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
