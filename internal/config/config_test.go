package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDataDir = "/var/lib/counts"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", testDataDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testDataDir, cfg.DataDir)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 4, cfg.ImportWorkers)
	assert.False(t, cfg.ServeAfterImport)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "traffic-class-counts", cfg.KafkaClassTopic)
	assert.Equal(t, "traffic-speed-counts", cfg.KafkaSpeedTopic)
	assert.Equal(t, "traffic-volume-counts", cfg.KafkaVolumeTopic)
	assert.Equal(t, "traffic-bicycle-counts", cfg.KafkaBicycleTopic)
	assert.Equal(t, "traffic-count-warnings", cfg.KafkaWarningTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATA_DIR", testDataDir)
	t.Setenv("TIMEZONE", "America/New_York")
	t.Setenv("IMPORT_WORKERS", "8")
	t.Setenv("SERVE_AFTER_IMPORT", "true")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_CLASS_TOPIC", "class")
	t.Setenv("KAFKA_SPEED_TOPIC", "speed")
	t.Setenv("KAFKA_VOLUME_TOPIC", "volume")
	t.Setenv("KAFKA_BICYCLE_TOPIC", "bicycle")
	t.Setenv("KAFKA_WARNING_TOPIC", "warning")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, 8, cfg.ImportWorkers)
	assert.True(t, cfg.ServeAfterImport)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "class", cfg.KafkaClassTopic)
	assert.Equal(t, "speed", cfg.KafkaSpeedTopic)
	assert.Equal(t, "volume", cfg.KafkaVolumeTopic)
	assert.Equal(t, "bicycle", cfg.KafkaBicycleTopic)
	assert.Equal(t, "warning", cfg.KafkaWarningTopic)
}

func TestLoad_MissingDataDir(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_DIR")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("DATA_DIR", testDataDir)
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("DATA_DIR", testDataDir)
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIMEZONE")
}

func TestLoad_InvalidImportWorkers(t *testing.T) {
	for _, v := range []string{"0", "65", "-1", "many"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("DATA_DIR", testDataDir)
			t.Setenv("IMPORT_WORKERS", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "IMPORT_WORKERS")
		})
	}
}

func TestLoad_ImportWorkersBounds(t *testing.T) {
	for _, v := range []string{"1", "64"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("DATA_DIR", testDataDir)
			t.Setenv("IMPORT_WORKERS", v)
			_, err := Load()
			require.NoError(t, err)
		})
	}
}
