// Package health implements the Health Prober: a single periodic loop that
// checks RTSP reachability for every monitored camera and feeds status
// transitions to the owning Camera Supervisor (SPEC_FULL §4.3).
package health
