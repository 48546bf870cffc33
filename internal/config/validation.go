package config

import (
	"errors"
	"fmt"
)

// Validate checks a fully loaded Config for internally inconsistent or
// out-of-range values. It aggregates every violation it finds rather than
// failing on the first one, so an operator can fix a config file in one pass.
func Validate(c *Config) error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("server.metrics_port out of range: %d", c.Server.MetricsPort))
	}
	if c.Server.RateLimitRequests <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_requests must be positive: %d", c.Server.RateLimitRequests))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, fmt.Errorf("database.max_open_conns must be positive: %d", c.Database.MaxOpenConns))
	}

	if c.Transcoder.SegmentSeconds < 1 || c.Transcoder.SegmentSeconds > 60 {
		errs = append(errs, fmt.Errorf("transcoder.segment_seconds out of range [1,60]: %d", c.Transcoder.SegmentSeconds))
	}
	if c.Transcoder.SegmentWindow < 1 {
		errs = append(errs, fmt.Errorf("transcoder.segment_window must be positive: %d", c.Transcoder.SegmentWindow))
	}
	if c.Transcoder.GracefulTimeoutSecs < 2.0 {
		errs = append(errs, fmt.Errorf("transcoder.graceful_timeout_seconds must be >= 2: %f", c.Transcoder.GracefulTimeoutSecs))
	}

	if c.Health.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("health.interval_seconds must be positive: %d", c.Health.IntervalSeconds))
	}
	if c.Health.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("health.timeout_seconds must be positive: %d", c.Health.TimeoutSeconds))
	}

	if c.ANPR.WorkerPoolSize <= 0 {
		errs = append(errs, fmt.Errorf("anpr.worker_pool_size must be positive: %d", c.ANPR.WorkerPoolSize))
	}
	if c.ANPR.DedupWindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("anpr.dedup_window_seconds must be positive: %d", c.ANPR.DedupWindowSeconds))
	}
	if c.ANPR.DedupMaxAgeSeconds <= 0 {
		errs = append(errs, fmt.Errorf("anpr.dedup_max_age_seconds must be positive: %d", c.ANPR.DedupMaxAgeSeconds))
	}

	if c.Retention.SweepIntervalHours <= 0 {
		errs = append(errs, fmt.Errorf("retention.sweep_interval_hours must be positive: %d", c.Retention.SweepIntervalHours))
	}

	if c.EventBus.SubscriberQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("event_bus.subscriber_queue_size must be positive: %d", c.EventBus.SubscriberQueueSize))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal", "panic", "trace":
	default:
		errs = append(errs, fmt.Errorf("logging.level invalid: %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
