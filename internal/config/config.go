package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// DatabaseURL selects Postgres. When empty the service runs on an
	// embedded SQLite database at SQLitePath instead.
	DatabaseURL string
	SQLitePath  string

	// LocationsFile is the YAML registry of monitored coastal sites.
	LocationsFile string

	// Analysis loop tuning.
	AnalysisInterval time.Duration
	LookbackWindow   time.Duration
	WorkerCount      int
	FetchRateLimit   float64

	// Marine data fetch.
	MarineBaseURL string
	MarineTimeout time.Duration

	// Hazard label classifier bridge.
	ClassifierURL       string
	ClassifierEnabled   bool
	ClassifierTimeout   time.Duration
	ClassifierCacheSize int

	// Notification dispatch.
	KafkaBrokers         []string
	NotificationsTopic   string
	NotificationsEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	analysisInterval, err := parsePositiveDuration("ANALYSIS_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	lookback, err := parsePositiveDuration("LOOKBACK_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	marineTimeout, err := parsePositiveDuration("MARINE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	classifierTimeout, err := parsePositiveDuration("CLASSIFIER_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	workerCount, err := parsePositiveInt("WORKER_COUNT", 4)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parsePositiveFloat("FETCH_RATE_LIMIT", 2)
	if err != nil {
		return nil, err
	}

	classifierURL := os.Getenv("CLASSIFIER_URL")
	classifierEnabled := classifierURL != ""
	if v := os.Getenv("CLASSIFIER_ENABLED"); v != "" {
		classifierEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  sharedcfg.EnvOrDefault("SQLITE_PATH", "hazardwatch.db"),

		LocationsFile: sharedcfg.EnvOrDefault("LOCATIONS_FILE", "locations.yaml"),

		AnalysisInterval: analysisInterval,
		LookbackWindow:   lookback,
		WorkerCount:      workerCount,
		FetchRateLimit:   rateLimit,

		MarineBaseURL: sharedcfg.EnvOrDefault("MARINE_API_URL", "https://marine-api.open-meteo.com/v1/marine"),
		MarineTimeout: marineTimeout,

		ClassifierURL:       classifierURL,
		ClassifierEnabled:   classifierEnabled,
		ClassifierTimeout:   classifierTimeout,
		ClassifierCacheSize: parseClassifierCacheSize(),

		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		NotificationsTopic:   sharedcfg.EnvOrDefault("NOTIFICATIONS_TOPIC", "hazard-notifications"),
		NotificationsEnabled: os.Getenv("NOTIFICATIONS_ENABLED") == "true",
	}

	if cfg.ClassifierEnabled && cfg.ClassifierURL == "" {
		return nil, errors.New("CLASSIFIER_ENABLED is true but CLASSIFIER_URL is not set")
	}
	if cfg.NotificationsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("NOTIFICATIONS_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.NotificationsEnabled && cfg.NotificationsTopic == "" {
		return nil, errors.New("NOTIFICATIONS_ENABLED is true but NOTIFICATIONS_TOPIC is empty")
	}

	return cfg, nil
}

func parsePositiveDuration(name string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return d, nil
}

func parsePositiveInt(name string, fallback int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

func parsePositiveFloat(name string, fallback float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return f, nil
}

func parseClassifierCacheSize() int {
	if s := os.Getenv("CLASSIFIER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 500
}
