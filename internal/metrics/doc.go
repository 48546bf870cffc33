// Package metrics centralizes the service's prometheus/client_golang
// collectors so every component reports camera status, recording activity,
// ANPR throughput, event-bus backpressure, retention outcomes, health-probe
// failures, and transcoder exits on one registry.
package metrics
