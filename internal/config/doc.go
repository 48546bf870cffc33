// Package config provides centralized configuration management for the VMS core.
//
// It handles layered configuration loading (defaults → YAML file → environment
// overrides), validation, and hot reload for the subset of fields that are safe
// to change on a running system.
//
// Key features:
//   - YAML configuration file loading with Viper
//   - Environment variable override support (VMS_* prefix)
//   - Hot reload with file system watching for live-safe fields
//   - Configuration validation with meaningful error messages
//   - Default value management
//
// Configuration sections:
//   - Server: HTTP control surface settings (host, port, timeouts, rate limits)
//   - Security: JWT validation, role requirements
//   - Storage: filesystem base paths for streams/records/snapshots/temp
//   - Database: embedded metadata store path and connection limits
//   - Vault: credential vault master-key source
//   - Transcoder: external transcoder binary path and timeouts
//   - Health: probe interval and timeout
//   - ANPR: global enablement, worker pool size, dedup window
//   - Retention: sweep interval
//   - EventBus: per-subscriber queue depth
//   - Logging: levels, formats, output destinations
//
// Usage pattern:
//   - Create a Manager with NewManager()
//   - Load configuration with Load(path)
//   - Access configuration with Config()
//   - Register for live updates with OnUpdate(callback)
package config
