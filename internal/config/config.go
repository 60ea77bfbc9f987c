package config

import (
	"errors"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in images without a zoneinfo database.

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const maxImportWorkers = 64

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir          string
	Location         *time.Location
	ImportWorkers    int
	ServeAfterImport bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka publishing is optional; the in-memory store is always loaded.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaClassTopic   string
	KafkaSpeedTopic   string
	KafkaVolumeTopic  string
	KafkaBicycleTopic string
	KafkaWarningTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TIMEZONE", "UTC"))
	if err != nil {
		return nil, errors.New("invalid TIMEZONE")
	}

	workers, err := parseImportWorkers()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:          os.Getenv("DATA_DIR"),
		Location:         loc,
		ImportWorkers:    workers,
		ServeAfterImport: os.Getenv("SERVE_AFTER_IMPORT") == "true",
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,

		KafkaEnabled:      os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaClassTopic:   sharedcfg.EnvOrDefault("KAFKA_CLASS_TOPIC", "traffic-class-counts"),
		KafkaSpeedTopic:   sharedcfg.EnvOrDefault("KAFKA_SPEED_TOPIC", "traffic-speed-counts"),
		KafkaVolumeTopic:  sharedcfg.EnvOrDefault("KAFKA_VOLUME_TOPIC", "traffic-volume-counts"),
		KafkaBicycleTopic: sharedcfg.EnvOrDefault("KAFKA_BICYCLE_TOPIC", "traffic-bicycle-counts"),
		KafkaWarningTopic: sharedcfg.EnvOrDefault("KAFKA_WARNING_TOPIC", "traffic-count-warnings"),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parseImportWorkers() (int, error) {
	s := os.Getenv("IMPORT_WORKERS")
	if s == "" {
		return 4, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxImportWorkers {
		return 0, errors.New("invalid IMPORT_WORKERS: must be between 1 and 64")
	}
	return n, nil
}
