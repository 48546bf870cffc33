package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variable overrides, e.g.
// VMS_SERVER_PORT overrides server.port.
const envPrefix = "VMS"

// Loader handles configuration loading using Viper.
type Loader struct {
	viper  *viper.Viper
	logger *logrus.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{
		viper:  v,
		logger: logrus.New(),
	}
}

// Load loads configuration from the specified file path, applying defaults
// first and environment overrides last.
func (l *Loader) Load(configPath string) (*Config, error) {
	l.viper.SetConfigFile(configPath)
	l.setDefaults()

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			l.logger.Warn("configuration file not found, using defaults")
		} else if os.IsNotExist(err) {
			l.logger.Warn("configuration file not found, using defaults")
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	l.logger.Info("configuration loaded successfully")
	return &cfg, nil
}

// setDefaults sets all default configuration values from SPEC_FULL §4-6.
func (l *Loader) setDefaults() {
	// Server
	l.viper.SetDefault("server.host", "0.0.0.0")
	l.viper.SetDefault("server.port", 8080)
	l.viper.SetDefault("server.metrics_port", 9090)
	l.viper.SetDefault("server.read_timeout_seconds", 15)
	l.viper.SetDefault("server.write_timeout_seconds", 15)
	l.viper.SetDefault("server.rate_limit_requests", 100)
	l.viper.SetDefault("server.rate_limit_window_seconds", 60)

	// Security
	l.viper.SetDefault("security.jwt_secret_env", "JWT_SECRET")
	l.viper.SetDefault("security.require_auth", true)
	l.viper.SetDefault("security.mutating_roles", "operator,admin")
	l.viper.SetDefault("security.media_base_url_env", "MEDIA_BASE_URL")

	// Storage
	l.viper.SetDefault("storage.streams_dir", "streams")
	l.viper.SetDefault("storage.recordings_dir", "records")
	l.viper.SetDefault("storage.snapshots_dir", "snapshots")
	l.viper.SetDefault("storage.temp_dir", "temp/anpr")

	// Database
	l.viper.SetDefault("database.path", "data/vms.db")
	l.viper.SetDefault("database.busy_timeout_ms", 5000)
	l.viper.SetDefault("database.max_open_conns", 1)

	// Vault
	l.viper.SetDefault("vault.master_key_env", "ENC_KEY")
	l.viper.SetDefault("vault.key_info", "vms:v1:credential")

	// Transcoder
	l.viper.SetDefault("transcoder.binary_path_env", "FFMPEG_PATH")
	l.viper.SetDefault("transcoder.segment_seconds", 2)
	l.viper.SetDefault("transcoder.segment_window", 6)
	l.viper.SetDefault("transcoder.graceful_timeout_seconds", 2.0)
	l.viper.SetDefault("transcoder.snapshot_timeout_seconds", 8.0)
	l.viper.SetDefault("transcoder.extract_timeout_seconds", 5.0)

	// Health
	l.viper.SetDefault("health.interval_seconds", 30)
	l.viper.SetDefault("health.timeout_seconds", 10)

	// ANPR
	l.viper.SetDefault("anpr.enabled_env", "ANPR_ENABLED")
	l.viper.SetDefault("anpr.worker_pool_size", minInt(8, runtime.NumCPU()*2))
	l.viper.SetDefault("anpr.detector_binary_env", "ANPR_DETECTOR_PATH")
	l.viper.SetDefault("anpr.extractor_binary_env", "ANPR_EXTRACTOR_PATH")
	l.viper.SetDefault("anpr.detector_timeout_seconds", 15.0)
	l.viper.SetDefault("anpr.extractor_timeout_seconds", 15.0)
	l.viper.SetDefault("anpr.dedup_window_seconds", 5)
	l.viper.SetDefault("anpr.dedup_prune_interval_seconds", 60)
	l.viper.SetDefault("anpr.dedup_max_age_seconds", 30)

	// Retention
	l.viper.SetDefault("retention.sweep_interval_hours", 24)

	// Event bus
	l.viper.SetDefault("event_bus.subscriber_queue_size", 256)

	// Logging
	l.viper.SetDefault("logging.level", "info")
	l.viper.SetDefault("logging.format", "text")
	l.viper.SetDefault("logging.file_enabled", true)
	l.viper.SetDefault("logging.file_path", "logs/vms-core.log")
	l.viper.SetDefault("logging.max_file_size", 10485760)
	l.viper.SetDefault("logging.backup_count", 5)
	l.viper.SetDefault("logging.console_enabled", true)
}

// GetViper returns the underlying Viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.viper
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
