package config

import (
	"fmt"
	"strings"
)

// Config represents the complete service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Security   SecurityConfig   `mapstructure:"security"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Transcoder TranscoderConfig `mapstructure:"transcoder"`
	Health     HealthConfig     `mapstructure:"health"`
	ANPR       ANPRConfig       `mapstructure:"anpr"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	EventBus   EventBusConfig   `mapstructure:"event_bus"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP control surface configuration settings.
type ServerConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	MetricsPort       int    `mapstructure:"metrics_port"`
	ReadTimeout       int    `mapstructure:"read_timeout_seconds"`
	WriteTimeout      int    `mapstructure:"write_timeout_seconds"`
	RateLimitRequests int    `mapstructure:"rate_limit_requests"`
	RateLimitWindow   int    `mapstructure:"rate_limit_window_seconds"`
}

// SecurityConfig represents bearer-auth validation configuration.
type SecurityConfig struct {
	JWTSecretEnv    string `mapstructure:"jwt_secret_env"`
	RequireAuth     bool   `mapstructure:"require_auth"`
	MutatingRoles   string `mapstructure:"mutating_roles"` // comma separated, e.g. "operator,admin"
	MediaBaseURLEnv string `mapstructure:"media_base_url_env"`
}

// StorageConfig represents filesystem base-path configuration.
type StorageConfig struct {
	StreamsDir   string `mapstructure:"streams_dir"`
	RecordingsDir string `mapstructure:"recordings_dir"`
	SnapshotsDir string `mapstructure:"snapshots_dir"`
	TempDir      string `mapstructure:"temp_dir"`
}

// DatabaseConfig represents the embedded metadata store configuration.
type DatabaseConfig struct {
	Path            string `mapstructure:"path"`
	BusyTimeoutMs   int    `mapstructure:"busy_timeout_ms"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
}

// VaultConfig represents the credential vault configuration.
type VaultConfig struct {
	MasterKeyEnv string `mapstructure:"master_key_env"`
	KeyInfo      string `mapstructure:"key_info"` // HKDF info string, versioned
}

// TranscoderConfig represents external transcoder binary configuration.
type TranscoderConfig struct {
	BinaryPathEnv       string  `mapstructure:"binary_path_env"`
	SegmentSeconds      int     `mapstructure:"segment_seconds"`
	SegmentWindow       int     `mapstructure:"segment_window"`
	GracefulTimeoutSecs float64 `mapstructure:"graceful_timeout_seconds"`
	SnapshotTimeoutSecs float64 `mapstructure:"snapshot_timeout_seconds"`
	ExtractTimeoutSecs  float64 `mapstructure:"extract_timeout_seconds"`
}

// HealthConfig represents health-prober configuration.
type HealthConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
}

// ANPRConfig represents the ANPR pipeline configuration.
type ANPRConfig struct {
	EnabledEnv           string  `mapstructure:"enabled_env"`
	WorkerPoolSize       int     `mapstructure:"worker_pool_size"`
	DetectorBinaryEnv    string  `mapstructure:"detector_binary_env"`
	ExtractorBinaryEnv   string  `mapstructure:"extractor_binary_env"`
	DetectorTimeoutSecs  float64 `mapstructure:"detector_timeout_seconds"`
	ExtractorTimeoutSecs float64 `mapstructure:"extractor_timeout_seconds"`
	DedupWindowSeconds   int     `mapstructure:"dedup_window_seconds"`
	DedupPruneInterval   int     `mapstructure:"dedup_prune_interval_seconds"`
	DedupMaxAgeSeconds   int     `mapstructure:"dedup_max_age_seconds"`
}

// RetentionConfig represents the retention collector configuration.
type RetentionConfig struct {
	SweepIntervalHours int `mapstructure:"sweep_interval_hours"`
}

// EventBusConfig represents the in-process pub/sub configuration.
type EventBusConfig struct {
	SubscriberQueueSize int `mapstructure:"subscriber_queue_size"`
}

// LoggingConfig represents logging configuration settings.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	BackupCount    int    `mapstructure:"backup_count"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
}

// MutatingRoleSet returns the configured mutating roles as a set.
func (s SecurityConfig) MutatingRoleSet() map[string]bool {
	set := make(map[string]bool)
	for _, role := range strings.Split(s.MutatingRoles, ",") {
		role = strings.TrimSpace(role)
		if role != "" {
			set[role] = true
		}
	}
	return set
}

// String returns a string representation of the configuration for debugging.
func (c *Config) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Server: %s:%d", c.Server.Host, c.Server.Port))
	parts = append(parts, fmt.Sprintf("Database: %s", c.Database.Path))
	parts = append(parts, fmt.Sprintf("Transcoder: segment=%ds window=%d", c.Transcoder.SegmentSeconds, c.Transcoder.SegmentWindow))
	parts = append(parts, fmt.Sprintf("Health: interval=%ds", c.Health.IntervalSeconds))
	parts = append(parts, fmt.Sprintf("ANPR: pool=%d dedup=%ds", c.ANPR.WorkerPoolSize, c.ANPR.DedupWindowSeconds))
	parts = append(parts, fmt.Sprintf("Logging: level=%s", c.Logging.Level))

	return fmt.Sprintf("Config{%s}", strings.Join(parts, ", "))
}
